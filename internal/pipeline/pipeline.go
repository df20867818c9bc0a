// Package pipeline runs one import job end to end: read the source files,
// order the entity-type passes by dependency, and for each record map,
// resolve, and persist — suspending on the question channel whenever a
// decision needs a human.
//
// A Runner owns its job, index, and question channel. Concurrent jobs share
// only the store and the sinks, which are safe for that.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/praxishq/intake/internal/audit"
	"github.com/praxishq/intake/internal/index"
	"github.com/praxishq/intake/internal/job"
	"github.com/praxishq/intake/internal/question"
	"github.com/praxishq/intake/internal/reader"
	"github.com/praxishq/intake/internal/resolve"
	"github.com/praxishq/intake/internal/schema"
	"github.com/praxishq/intake/internal/store"
)

// File names one source file and the entity type its records carry.
// Classification is the caller's, never inferred from content.
type File struct {
	Path   string            `json:"path"`
	Entity schema.EntityType `json:"entity"`
}

// maxRefRounds bounds re-resolution after reference decisions, so a record
// whose references keep failing cannot loop forever.
const maxRefRounds = 8

// Runner executes one import job.
type Runner struct {
	Job       *job.Job
	Store     store.Store
	Questions *question.Channel
	Logs      audit.LogSink
	Audit     audit.Sink
	Reporter  job.StatusReporter

	// SkipBadRecords drops records with required-field problems without
	// asking. Off by default: the channel gets a skip_continue question.
	SkipBadRecords bool

	// QuestionTimeout bounds each wait for an answer. Zero waits forever.
	// A timeout fails the job rather than cancelling it.
	QuestionTimeout time.Duration

	// ReadFile is swappable for tests; defaults to reader.Read.
	ReadFile func(path string, entity schema.EntityType) ([]schema.RawRecord, error)

	index *index.Index

	// decisions caches duplicate-confirmation answers by key pair, so the
	// same pair is never asked twice in one job.
	decisions map[string]bool
}

// New wires a runner for one job.
func New(j *job.Job, st store.Store, ch *question.Channel, logs audit.LogSink, aud audit.Sink, rep job.StatusReporter) *Runner {
	if rep == nil {
		rep = job.NopReporter{}
	}
	return &Runner{
		Job:       j,
		Store:     st,
		Questions: ch,
		Logs:      logs,
		Audit:     aud,
		Reporter:  rep,
		ReadFile:  reader.Read,
		index:     index.New(),
		decisions: make(map[string]bool),
	}
}

// Seed pre-populates the job's index with entries from an earlier run, so
// re-importing the same files resolves everything as duplicates.
func (r *Runner) Seed(entity schema.EntityType, entries []index.Entry) error {
	return r.index.Seed(entity, entries)
}

// Index exposes the job's entity index after a run, for seeding a later one.
func (r *Runner) Index() *index.Index { return r.index }

// Run processes the files to completion, failure, or cancellation. It is
// called on its own goroutine; all progress is observable through the job,
// the sinks, and the question channel.
func (r *Runner) Run(ctx context.Context, files []File) error {
	if err := r.Job.Transition(job.StatusProcessing); err != nil {
		return err
	}
	r.report()
	r.log(audit.LevelInfo, fmt.Sprintf("import started: %d file(s)", len(files)))

	byEntity := make(map[schema.EntityType][]schema.RawRecord)
	var requested []schema.EntityType
	for _, f := range files {
		recs, err := r.ReadFile(f.Path, f.Entity)
		if err != nil {
			return r.fail(fmt.Errorf("read %s: %w", f.Path, err))
		}
		if _, seen := byEntity[f.Entity]; !seen {
			requested = append(requested, f.Entity)
		}
		byEntity[f.Entity] = append(byEntity[f.Entity], recs...)
		r.log(audit.LevelInfo, fmt.Sprintf("read %s: %d record(s) of %s", f.Path, len(recs), f.Entity))
	}

	seeded := make(map[schema.EntityType]bool)
	for _, def := range schema.All() {
		if len(r.index.Entries(def.Entity)) > 0 {
			seeded[def.Entity] = true
		}
	}

	order, err := schema.ImportOrder(requested, seeded)
	if err != nil {
		return r.fail(fmt.Errorf("import order: %w", err))
	}

	for _, entity := range order {
		if err := r.pass(ctx, entity, byEntity[entity]); err != nil {
			if errors.Is(err, question.ErrCancelled) || errors.Is(err, context.Canceled) {
				return r.cancelled()
			}
			return r.fail(err)
		}
		r.report()
	}

	c := r.Job.Counters()
	r.Job.SetSummary(fmt.Sprintf("processed %d: %d imported, %d skipped, %d errors",
		c.Processed, c.Imported, c.Skipped, c.Errors))
	if err := r.Job.Transition(job.StatusCompleted); err != nil {
		return err
	}
	r.report()
	r.log(audit.LevelSuccess, "import completed: "+r.Job.Snapshot().Summary)

	return nil
}

// pass imports every record of one entity type inside one transaction.
// Any fatal error rolls the whole pass back.
func (r *Runner) pass(ctx context.Context, entity schema.EntityType, records []schema.RawRecord) (err error) {
	def, ok := schema.Get(entity)
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrUnknownEntity, entity)
	}

	r.log(audit.LevelInfo, fmt.Sprintf("pass started: %s (%d record(s))", def.Label, len(records)))

	tx, err := r.Store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin %s pass: %w", entity, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				r.log(audit.LevelError, fmt.Sprintf("rollback %s pass: %v", entity, rbErr))
			} else {
				r.log(audit.LevelWarning, fmt.Sprintf("pass rolled back: %s", def.Label))
			}
		}
	}()

	for _, raw := range records {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = r.processRecord(ctx, tx, def, raw); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s pass: %w", entity, err)
	}

	r.log(audit.LevelInfo, fmt.Sprintf("pass committed: %s", def.Label))
	return nil
}

// processRecord takes one raw record through mapping, resolution, and
// persistence. Non-fatal problems are counted and logged; a returned error
// is fatal for the pass.
func (r *Runner) processRecord(ctx context.Context, tx store.Tx, def schema.Definition, raw schema.RawRecord) error {
	where := fmt.Sprintf("%s row %d", raw.Source, raw.Row)

	rec, issues := schema.MapRecord(def, raw)
	for _, issue := range issues {
		if !issue.Required {
			r.log(audit.LevelWarning, fmt.Sprintf("%s: %s (field dropped)", where, issue.Error()))
			continue
		}

		if r.SkipBadRecords {
			r.log(audit.LevelWarning, fmt.Sprintf("%s: %s (record skipped by policy)", where, issue.Error()))
			r.Job.RecordError()
			return nil
		}

		answer, err := r.ask(ctx, question.Question{
			Type:    question.TypeSkipContinue,
			Text:    fmt.Sprintf("%s has a problem with required field %q: %s. Skip this record, or continue without the field?", where, issue.Field, issue.Error()),
			Context: where,
		})
		if err != nil {
			return err
		}
		if answer == "skip" {
			r.log(audit.LevelDecision, fmt.Sprintf("%s: skipped on required-field problem (%s)", where, issue.Field))
			r.Job.RecordError()
			return nil
		}
		r.log(audit.LevelDecision, fmt.Sprintf("%s: continuing without required field %s", where, issue.Field))
	}

	for round := 0; round < maxRefRounds; round++ {
		outcome := resolve.Resolve(def, rec, r.index)
		r.log(audit.LevelThinking, fmt.Sprintf("%s: resolved as %s", where, outcome.Kind))

		switch outcome.Kind {
		case resolve.Duplicate:
			r.bindKeys(def, rec, outcome.Existing, where)
			r.log(audit.LevelDecision, fmt.Sprintf("%s: duplicate of existing %s #%d, skipped", where, def.Entity, outcome.Existing))
			r.Job.RecordSkipped()
			return nil

		case resolve.PendingDuplicateConfirmation:
			merged, known, err := r.confirmDuplicate(ctx, def, rec, outcome.Candidate, where)
			if err != nil {
				return err
			}
			if merged {
				r.bindKeys(def, rec, outcome.Candidate.Handle, where)
				r.log(audit.LevelDecision, fmt.Sprintf("%s: confirmed duplicate of %q, skipped", where, outcome.Candidate.Name))
				r.Job.RecordSkipped()
				return nil
			}
			if known {
				r.log(audit.LevelDecision, fmt.Sprintf("%s: confirmed distinct from %q", where, outcome.Candidate.Name))
			}
			// Distinct: resolve references and persist, bypassing the
			// fuzzy check that already got its answer.
			return r.createNew(ctx, tx, def, rec, raw, where)

		case resolve.UnresolvedReference:
			proceed, err := r.resolveMissingRef(ctx, tx, &rec, outcome, where)
			if err != nil {
				return err
			}
			if !proceed {
				r.Job.RecordSkipped()
				return nil
			}
			// Reference repaired; resolve again.

		case resolve.New:
			return r.persist(ctx, tx, def, rec, raw, where)
		}
	}

	r.log(audit.LevelError, fmt.Sprintf("%s: gave up after %d reference-resolution rounds, skipped", where, maxRefRounds))
	r.Job.RecordError()
	return nil
}

// createNew resolves the record's references directly (the duplicate
// question is already answered) and persists it.
func (r *Runner) createNew(ctx context.Context, tx store.Tx, def schema.Definition, rec schema.CanonicalRecord, raw schema.RawRecord, where string) error {
	for round := 0; round < maxRefRounds; round++ {
		unresolved, ok := r.firstUnresolvedRef(def, rec)
		if !ok {
			return r.persist(ctx, tx, def, rec, raw, where)
		}
		proceed, err := r.resolveMissingRef(ctx, tx, &rec, unresolved, where)
		if err != nil {
			return err
		}
		if !proceed {
			r.Job.RecordSkipped()
			return nil
		}
	}

	r.log(audit.LevelError, fmt.Sprintf("%s: gave up after %d reference-resolution rounds, skipped", where, maxRefRounds))
	r.Job.RecordError()
	return nil
}

// firstUnresolvedRef mirrors the reference step of the resolution cascade.
func (r *Runner) firstUnresolvedRef(def schema.Definition, rec schema.CanonicalRecord) (resolve.Outcome, bool) {
	for _, spec := range def.FieldsOfType(schema.FieldReference) {
		v := rec.Str(spec.Name)
		if v == "" {
			continue
		}
		if _, ok := resolve.ResolveReference(r.index, spec.References, v); !ok {
			return resolve.Outcome{
				Kind:         resolve.UnresolvedReference,
				MissingField: spec.Name,
				MissingRef:   v,
				RefEntity:    spec.References,
			}, true
		}
	}
	return resolve.Outcome{}, false
}

// persist creates the record, binds its natural keys, and records the
// audit entry. A store-level duplicate here means the resolution engine
// and the store disagree: fatal for the pass.
func (r *Runner) persist(ctx context.Context, tx store.Tx, def schema.Definition, rec schema.CanonicalRecord, raw schema.RawRecord, where string) error {
	h, err := tx.Create(ctx, def.Entity, rec)
	if err != nil {
		return fmt.Errorf("%s: %w", where, err)
	}

	// Keys are bound one at a time: a name signature already claimed by a
	// confirmed-distinct entity stays with its first binding, while the new
	// record still gets its identifier keys. Id collisions never reach this
	// point; store uniqueness rejects them in Create.
	handle := index.Handle(h)
	r.bindKeys(def, rec, handle, where)

	r.Audit.Record(r.Job.ID(), def.Entity, int64(h), raw.Source, raw.Row)
	r.Job.RecordImported()
	r.log(audit.LevelSuccess, fmt.Sprintf("%s: imported %s %q as #%d", where, def.Entity, resolve.DisplayName(def, rec), h))

	return nil
}

// bindKeys binds the record's natural keys to a handle one at a time, so
// later references through any of its spellings resolve. A key already
// bound elsewhere is left alone.
func (r *Runner) bindKeys(def schema.Definition, rec schema.CanonicalRecord, h index.Handle, where string) {
	for _, k := range resolve.RecordKeys(def, rec) {
		if err := r.index.Bind(def.Entity, h, rec, k); err != nil {
			r.log(audit.LevelDebug, fmt.Sprintf("%s: key %q stays with its first binding", where, k.Value))
		}
	}
}

// confirmDuplicate asks (or recalls) whether the record is the same entity
// as the fuzzy candidate. The answer is cached by key pair for the job.
func (r *Runner) confirmDuplicate(ctx context.Context, def schema.Definition, rec schema.CanonicalRecord, cand index.Candidate, where string) (merged, known bool, err error) {
	pair := string(def.Entity) + "\x00" + index.NameKey(def.Entity, resolve.DisplayName(def, rec)).Value + "\x00" + cand.Key.Value
	if merged, ok := r.decisions[pair]; ok {
		return merged, true, nil
	}

	answer, err := r.ask(ctx, question.Question{
		Type:    question.TypeYesNo,
		Text:    fmt.Sprintf("%s: is %q the same %s as existing %q (similarity %.2f)?", where, resolve.DisplayName(def, rec), def.Label, cand.Name, cand.Score),
		Context: where,
	})
	if err != nil {
		return false, false, err
	}

	merged = answer == "yes"
	r.decisions[pair] = merged
	return merged, false, nil
}

// resolveMissingRef asks what to do about a reference that matched nothing,
// and applies the decision. proceed=false means the record was skipped.
func (r *Runner) resolveMissingRef(ctx context.Context, tx store.Tx, rec *schema.CanonicalRecord, outcome resolve.Outcome, where string) (proceed bool, err error) {
	refDef, ok := schema.Get(outcome.RefEntity)
	if !ok {
		return false, fmt.Errorf("%s: unknown referenced entity %s", where, outcome.RefEntity)
	}

	answer, err := r.ask(ctx, question.Question{
		Type:    question.TypeChoice,
		Text:    fmt.Sprintf("%s references %s %q (field %s) which does not exist. How should this be handled?", where, refDef.Label, outcome.MissingRef, outcome.MissingField),
		Context: where,
		Options: []string{"skip", "create_placeholder", "provide_correct"},
	})
	if err != nil {
		return false, err
	}

	switch answer {
	case "skip":
		r.log(audit.LevelDecision, fmt.Sprintf("%s: skipped on unresolved %s reference %q", where, outcome.RefEntity, outcome.MissingRef))
		return false, nil

	case "create_placeholder":
		if err := r.createPlaceholder(ctx, tx, refDef, outcome.MissingRef, where); err != nil {
			return false, err
		}
		return true, nil

	case "provide_correct":
		corrected, err := r.ask(ctx, question.Question{
			Type:    question.TypeText,
			Text:    fmt.Sprintf("Enter the correct %s key for %s (was %q):", refDef.Label, where, outcome.MissingRef),
			Context: where,
		})
		if err != nil {
			return false, err
		}
		if _, ok := resolve.ResolveReference(r.index, outcome.RefEntity, corrected); !ok {
			r.log(audit.LevelDecision, fmt.Sprintf("%s: corrected reference %q also unresolved, skipped", where, corrected))
			return false, nil
		}
		rec.Set(outcome.MissingField, schema.Value{Kind: schema.KindString, Str: corrected})
		r.log(audit.LevelDecision, fmt.Sprintf("%s: reference corrected to %q", where, corrected))
		return true, nil
	}

	return false, fmt.Errorf("%s: unexpected answer %q", where, answer)
}

// createPlaceholder persists a minimal entity carrying just the missing
// key, inside the current pass's transaction, and binds it under both its
// identifier and name signatures so either spelling resolves later.
func (r *Runner) createPlaceholder(ctx context.Context, tx store.Tx, refDef schema.Definition, value, where string) error {
	rec := schema.CanonicalRecord{Entity: refDef.Entity}
	if ids := refDef.KeyFields(schema.KeyID); len(ids) > 0 {
		rec.Set(ids[0].Name, schema.Value{Kind: schema.KindString, Str: value})
	}
	if names := refDef.KeyFields(schema.KeyName); len(names) > 0 && !rec.Has(names[0].Name) {
		rec.Set(names[0].Name, schema.Value{Kind: schema.KindString, Str: value})
	}

	h, err := tx.Create(ctx, refDef.Entity, rec)
	if err != nil {
		return fmt.Errorf("%s: placeholder %s: %w", where, refDef.Entity, err)
	}

	handle := index.Handle(h)
	keys := []index.Key{
		index.IDKey(refDef.Entity, value),
		index.NameKey(refDef.Entity, value),
	}
	if err := r.index.Bind(refDef.Entity, handle, rec, keys...); err != nil {
		return fmt.Errorf("%s: placeholder %s: %w", where, refDef.Entity, err)
	}

	r.Audit.Record(r.Job.ID(), refDef.Entity, int64(h), "", 0)
	r.log(audit.LevelDecision, fmt.Sprintf("%s: created placeholder %s %q as #%d", where, refDef.Entity, value, h))

	return nil
}

// ask suspends the job on the question channel, moving the status to
// waiting_input for the duration so observers see the job is blocked.
func (r *Runner) ask(ctx context.Context, q question.Question) (string, error) {
	if err := r.Job.Transition(job.StatusWaitingInput); err != nil {
		return "", err
	}
	r.report()

	askCtx := ctx
	if r.QuestionTimeout > 0 {
		var cancel context.CancelFunc
		askCtx, cancel = context.WithTimeout(ctx, r.QuestionTimeout)
		defer cancel()
	}

	answer, err := r.Questions.Ask(askCtx, q)
	if err != nil {
		if errors.Is(askCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			// Timed out waiting, not cancelled: fail the job.
			return "", fmt.Errorf("no answer within %s for: %s", r.QuestionTimeout, q.Text)
		}
		return "", err
	}

	if err := r.Job.Transition(job.StatusProcessing); err != nil {
		return "", err
	}
	r.report()

	return answer, nil
}

// fail marks the job failed and releases any question waiter.
func (r *Runner) fail(cause error) error {
	r.Job.SetErrorDetails(cause.Error())
	r.log(audit.LevelError, "import failed: "+cause.Error())

	if err := r.Job.Transition(job.StatusFailed); err != nil && !errors.Is(err, job.ErrBadTransition) {
		return err
	}
	r.Questions.Cancel()
	r.report()

	return cause
}

// cancelled finalizes a run interrupted by cancellation. The canceller may
// have already moved the job to cancelled; that is not an error here.
func (r *Runner) cancelled() error {
	if err := r.Job.Transition(job.StatusCancelled); err != nil && !errors.Is(err, job.ErrBadTransition) {
		return err
	}
	r.Questions.Cancel()
	r.report()
	r.log(audit.LevelWarning, "import cancelled")

	return context.Canceled
}

func (r *Runner) report() {
	r.Reporter.SetStatus(r.Job.ID(), r.Job.Status(), r.Job.Counters())
}

func (r *Runner) log(level audit.Level, msg string) {
	r.Logs.Append(r.Job.ID(), level, msg)
}
