package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praxishq/intake/internal/schema"
)

// DBTX is the subset of pgx operations the store needs.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Postgres is the pgx-backed Store. One table per entity type; table and
// column names come from the registered definitions, never from input.
type Postgres struct {
	pool *pgxpool.Pool
	db   DBTX
}

// NewPostgres creates a store on the given pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, db: pool}
}

// Create inserts the record's canonical values and returns the new row id.
func (p *Postgres) Create(ctx context.Context, entity schema.EntityType, rec schema.CanonicalRecord) (Handle, error) {
	def, ok := schema.Get(entity)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}

	var (
		cols    []string
		holders []string
		args    []any
	)
	for _, spec := range def.Fields {
		v, present := rec.Fields[spec.Name]
		if !present {
			continue
		}
		cols = append(cols, spec.Name)
		holders = append(holders, fmt.Sprintf("$%d", len(cols)))

		switch v.Kind {
		case schema.KindDate:
			args = append(args, v.Date)
		case schema.KindBool:
			args = append(args, v.Bool)
		default:
			args = append(args, v.Str)
		}
	}

	if len(cols) == 0 {
		return 0, fmt.Errorf("create %s: empty record", entity)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		string(entity), strings.Join(cols, ", "), strings.Join(holders, ", "),
	)

	var id int64
	if err := p.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s: %v", ErrDuplicateKey, entity, err)
		}
		return 0, fmt.Errorf("create %s: %w", entity, err)
	}

	return Handle(id), nil
}

// FetchByKey finds a row by an exact field value.
func (p *Postgres) FetchByKey(ctx context.Context, entity schema.EntityType, field, value string) (Handle, bool, error) {
	def, ok := schema.Get(entity)
	if !ok {
		return 0, false, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}

	known := false
	for _, spec := range def.Fields {
		if spec.Name == field {
			known = true
			break
		}
	}
	if !known {
		return 0, false, fmt.Errorf("unknown field %s.%s", entity, field)
	}

	query := fmt.Sprintf("SELECT id FROM %s WHERE %s = $1", string(entity), field)

	var id int64
	err := p.db.QueryRow(ctx, query, value).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("fetch %s by %s: %w", entity, field, err)
	}

	return Handle(id), true, nil
}

// Begin opens the scoped transaction for one entity-type pass.
func (p *Postgres) Begin(ctx context.Context) (Tx, error) {
	pgtx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &postgresTx{Postgres: &Postgres{pool: p.pool, db: pgtx}, tx: pgtx}, nil
}

type postgresTx struct {
	*Postgres
	tx pgx.Tx
}

func (t *postgresTx) Begin(ctx context.Context) (Tx, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *postgresTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
