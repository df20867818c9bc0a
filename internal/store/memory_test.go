package store

import (
	"context"
	"errors"
	"testing"

	"github.com/praxishq/intake/internal/schema"
)

func clientRec(number, name string) schema.CanonicalRecord {
	rec := schema.CanonicalRecord{Entity: schema.Clients}
	rec.Set("client_number", schema.Value{Kind: schema.KindString, Str: number})
	rec.Set("name", schema.Value{Kind: schema.KindString, Str: name})
	return rec
}

func TestMemory_CreateAndFetch(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	h, err := m.Create(ctx, schema.Clients, clientRec("CL-2024-001", "Meridian Holdings"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, ok, err := m.FetchByKey(ctx, schema.Clients, "client_number", "CL 2024 001")
	if err != nil || !ok || got != h {
		t.Fatalf("FetchByKey = (%v, %v, %v), want (%v, true, nil)", got, ok, err, h)
	}

	if _, ok, _ := m.FetchByKey(ctx, schema.Clients, "client_number", "CL-2024-999"); ok {
		t.Error("fetch of absent key succeeded")
	}
}

func TestMemory_DuplicateKey(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.Create(ctx, schema.Clients, clientRec("CL-2024-001", "First")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Create(ctx, schema.Clients, clientRec("CL-2024-001", "Second")); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestMemory_TxRollback(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	tx, err := m.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	if _, err := tx.Create(ctx, schema.Clients, clientRec("CL-2024-001", "A")); err != nil {
		t.Fatalf("tx Create: %v", err)
	}
	if _, err := tx.Create(ctx, schema.Clients, clientRec("CL-2024-002", "B")); err != nil {
		t.Fatalf("tx Create: %v", err)
	}

	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if n := m.Count(schema.Clients); n != 0 {
		t.Errorf("rows after rollback = %d, want 0", n)
	}
	if _, ok, _ := m.FetchByKey(ctx, schema.Clients, "client_number", "CL-2024-001"); ok {
		t.Error("key survived rollback")
	}

	// Keys freed by rollback are reusable.
	if _, err := m.Create(ctx, schema.Clients, clientRec("CL-2024-001", "A")); err != nil {
		t.Errorf("Create after rollback: %v", err)
	}
}

func TestMemory_TxCommit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	tx, err := m.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	h, err := tx.Create(ctx, schema.Clients, clientRec("CL-2024-001", "A"))
	if err != nil {
		t.Fatalf("tx Create: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback after Commit: %v", err)
	}

	if rec, ok := m.Get(schema.Clients, h); !ok || rec.Str("name") != "A" {
		t.Errorf("committed row missing: (%v, %v)", rec, ok)
	}
}
