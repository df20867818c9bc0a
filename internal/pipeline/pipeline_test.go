package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/praxishq/intake/internal/audit"
	"github.com/praxishq/intake/internal/index"
	"github.com/praxishq/intake/internal/job"
	"github.com/praxishq/intake/internal/question"
	"github.com/praxishq/intake/internal/schema"
	"github.com/praxishq/intake/internal/store"
)

type harness struct {
	runner *Runner
	job    *job.Job
	store  *store.Memory
	sink   *audit.MemorySink
	ch     *question.Channel
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	j := job.New()
	st := store.NewMemory()
	ch := question.NewChannel(j.ID())
	sink := audit.NewMemorySink()

	return &harness{
		runner: New(j, st, ch, sink, sink, nil),
		job:    j,
		store:  st,
		sink:   sink,
		ch:     ch,
	}
}

// respond runs a background responder that answers every pending question
// with fn's choice until the returned stop function is called.
func respond(t *testing.T, ch *question.Channel, fn func(question.Question) string) func() {
	t.Helper()

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(5 * time.Millisecond):
			}
			q, ok := ch.Pending()
			if !ok {
				continue
			}
			err := ch.Answer(q.ID, fn(q))
			if err != nil && !errors.Is(err, question.ErrAlreadyAnswered) && !errors.Is(err, question.ErrNotFound) {
				t.Errorf("Answer: %v", err)
			}
		}
	}()

	return func() { close(stop) }
}

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func checkCounters(t *testing.T, j *job.Job, imported, skipped, errCount int) {
	t.Helper()

	c := j.Counters()
	if c.Imported != imported || c.Skipped != skipped || c.Errors != errCount {
		t.Errorf("counters = %+v, want imported=%d skipped=%d errors=%d", c, imported, skipped, errCount)
	}
	if c.Processed != c.Imported+c.Skipped+c.Errors {
		t.Errorf("counter invariant broken: %+v", c)
	}
}

func TestRun_DependencyOrder(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	clients := writeFixture(t, dir, "clients.csv",
		"Client Number,Client Name,Tax ID\nCL-2024-001,Meridian Holdings,12-3456789\n")
	matters := writeFixture(t, dir, "matters.csv",
		"MatterNumber,ClientID,Title\nM-1001,CL-2024-001,Contract Review\n")

	// Matters listed first; the clients pass must still run first.
	err := h.runner.Run(context.Background(), []File{
		{Path: matters, Entity: schema.Matters},
		{Path: clients, Entity: schema.Clients},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := h.job.Status(); got != job.StatusCompleted {
		t.Fatalf("status = %s, want completed", got)
	}
	checkCounters(t, h.job, 2, 0, 0)

	entries := h.sink.Entries(h.job.ID())
	if len(entries) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(entries))
	}
	if entries[0].Entity != schema.Clients || entries[1].Entity != schema.Matters {
		t.Errorf("pass order = [%s, %s], want [clients, matters]", entries[0].Entity, entries[1].Entity)
	}

	if n := h.store.Count(schema.Matters); n != 1 {
		t.Errorf("matters stored = %d, want 1", n)
	}
}

func TestRun_ExactDuplicateSkipped(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	clients := writeFixture(t, dir, "clients.csv",
		"Client Number,Client Name\nCL-2024-001,Meridian Holdings\nCL 2024 001,Meridian Holdings Inc\n")

	if err := h.runner.Run(context.Background(), []File{{Path: clients, Entity: schema.Clients}}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	checkCounters(t, h.job, 1, 1, 0)
	if n := h.store.Count(schema.Clients); n != 1 {
		t.Errorf("clients stored = %d, want 1", n)
	}
}

func TestRun_FuzzyDuplicateConfirmed(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	clients := writeFixture(t, dir, "clients.csv",
		"Client Number,Client Name\nCL-2024-001,GrayStone Enterprises LLC\nCL-2024-002,Graystone Enterprise\n")

	var asked []question.Question
	stop := respond(t, h.ch, func(q question.Question) string {
		asked = append(asked, q)
		return "yes"
	})
	defer stop()

	if err := h.runner.Run(context.Background(), []File{{Path: clients, Entity: schema.Clients}}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	checkCounters(t, h.job, 1, 1, 0)
	if len(asked) != 1 || asked[0].Type != question.TypeYesNo {
		t.Fatalf("asked = %+v, want one yes_no question", asked)
	}
	if n := h.store.Count(schema.Clients); n != 1 {
		t.Errorf("clients stored = %d, want 1", n)
	}
}

func TestRun_FuzzyDuplicateDenied(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	clients := writeFixture(t, dir, "clients.csv",
		"Client Number,Client Name\nCL-2024-001,GrayStone Enterprises LLC\nCL-2024-002,Graystone Enterprise\n")

	stop := respond(t, h.ch, func(q question.Question) string { return "no" })
	defer stop()

	if err := h.runner.Run(context.Background(), []File{{Path: clients, Entity: schema.Clients}}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	checkCounters(t, h.job, 2, 0, 0)
	if n := h.store.Count(schema.Clients); n != 2 {
		t.Errorf("clients stored = %d, want 2", n)
	}
}

func TestRun_IdenticalNameDenied(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	// Same name signature, different client numbers. A "no" answer must
	// create the second client; the contested name key stays with the
	// first one.
	clients := writeFixture(t, dir, "clients.csv",
		"Client Number,Client Name\nCL-2024-001,Graystone Enterprises\nCL-2024-002,GRAYSTONE ENTERPRISES\n")

	stop := respond(t, h.ch, func(q question.Question) string { return "no" })
	defer stop()

	if err := h.runner.Run(context.Background(), []File{{Path: clients, Entity: schema.Clients}}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := h.job.Status(); got != job.StatusCompleted {
		t.Fatalf("status = %s, want completed", got)
	}
	checkCounters(t, h.job, 2, 0, 0)
	if n := h.store.Count(schema.Clients); n != 2 {
		t.Errorf("clients stored = %d, want 2", n)
	}

	// Both identifier keys resolve; the shared name signature kept its
	// first binding.
	ix := h.runner.Index()
	h1, ok1 := ix.Lookup(index.IDKey(schema.Clients, "CL-2024-001"))
	h2, ok2 := ix.Lookup(index.IDKey(schema.Clients, "CL-2024-002"))
	if !ok1 || !ok2 || h1 == h2 {
		t.Errorf("id keys = (%d,%v) (%d,%v), want two distinct handles", h1, ok1, h2, ok2)
	}
	if nh, ok := ix.Lookup(index.NameKey(schema.Clients, "Graystone Enterprises")); !ok || nh != h1 {
		t.Errorf("name key handle = %d (ok=%v), want first client %d", nh, ok, h1)
	}
}

func TestRun_UnresolvedReferenceSkip(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	clients := writeFixture(t, dir, "clients.csv",
		"Client Number,Client Name\nCL-2024-001,Meridian Holdings\n")
	matters := writeFixture(t, dir, "matters.csv",
		"MatterNumber,ClientID,Title\nM-1001,CL-2024-999,Orphan Matter\n")

	var asked []question.Question
	stop := respond(t, h.ch, func(q question.Question) string {
		asked = append(asked, q)
		return "skip"
	})
	defer stop()

	err := h.runner.Run(context.Background(), []File{
		{Path: clients, Entity: schema.Clients},
		{Path: matters, Entity: schema.Matters},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := h.job.Status(); got != job.StatusCompleted {
		t.Fatalf("status = %s, want completed", got)
	}
	checkCounters(t, h.job, 1, 1, 0)
	if len(asked) != 1 || asked[0].Type != question.TypeChoice {
		t.Fatalf("asked = %+v, want one choice question", asked)
	}
	if n := h.store.Count(schema.Matters); n != 0 {
		t.Errorf("matters stored = %d, want 0", n)
	}
}

func TestRun_UnresolvedReferencePlaceholder(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	matters := writeFixture(t, dir, "matters.csv",
		"MatterNumber,ClientID,Title\nM-1001,CL-2024-999,Recovered Matter\n")
	clients := writeFixture(t, dir, "clients.csv",
		"Client Number,Client Name\nCL-2024-001,Meridian Holdings\n")

	stop := respond(t, h.ch, func(q question.Question) string { return "create_placeholder" })
	defer stop()

	err := h.runner.Run(context.Background(), []File{
		{Path: clients, Entity: schema.Clients},
		{Path: matters, Entity: schema.Matters},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	checkCounters(t, h.job, 2, 0, 0)
	if n := h.store.Count(schema.Clients); n != 2 {
		t.Errorf("clients stored = %d, want 2 (original + placeholder)", n)
	}
	if n := h.store.Count(schema.Matters); n != 1 {
		t.Errorf("matters stored = %d, want 1", n)
	}

	// The placeholder carries the missing key.
	if _, ok, _ := h.store.FetchByKey(context.Background(), schema.Clients, "client_number", "CL-2024-999"); !ok {
		t.Error("placeholder client not stored under the missing key")
	}
}

func TestRun_ProvideCorrectReference(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	clients := writeFixture(t, dir, "clients.csv",
		"Client Number,Client Name\nCL-2024-001,Meridian Holdings\n")
	matters := writeFixture(t, dir, "matters.csv",
		"MatterNumber,ClientID,Title\nM-1001,CL-2024-OOPS,Typo Matter\n")

	stop := respond(t, h.ch, func(q question.Question) string {
		if q.Type == question.TypeChoice {
			return "provide_correct"
		}
		return "CL-2024-001"
	})
	defer stop()

	err := h.runner.Run(context.Background(), []File{
		{Path: clients, Entity: schema.Clients},
		{Path: matters, Entity: schema.Matters},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	checkCounters(t, h.job, 2, 0, 0)
	if n := h.store.Count(schema.Matters); n != 1 {
		t.Errorf("matters stored = %d, want 1", n)
	}
}

func TestRun_RequiredFieldPolicySkip(t *testing.T) {
	h := newHarness(t)
	h.runner.SkipBadRecords = true
	dir := t.TempDir()

	clients := writeFixture(t, dir, "clients.csv",
		"Client Number,Client Name\nCL-2024-001,Meridian Holdings\nCL-2024-002,\n")

	if err := h.runner.Run(context.Background(), []File{{Path: clients, Entity: schema.Clients}}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	checkCounters(t, h.job, 1, 0, 1)
}

func TestRun_MissingDependencyFails(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	matters := writeFixture(t, dir, "matters.csv",
		"MatterNumber,ClientID,Title\nM-1001,CL-2024-001,Contract Review\n")

	err := h.runner.Run(context.Background(), []File{{Path: matters, Entity: schema.Matters}})
	if !errors.Is(err, schema.ErrMissingDependency) {
		t.Fatalf("err = %v, want ErrMissingDependency", err)
	}
	if got := h.job.Status(); got != job.StatusFailed {
		t.Errorf("status = %s, want failed", got)
	}
	if n := h.store.Count(schema.Matters); n != 0 {
		t.Errorf("matters stored = %d, want 0 (failed before writes)", n)
	}
}

func TestRun_CancelWhileWaiting(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	clients := writeFixture(t, dir, "clients.csv",
		"Client Number,Client Name\nCL-2024-001,Meridian Holdings\n")
	matters := writeFixture(t, dir, "matters.csv",
		"MatterNumber,ClientID,Title\nM-1001,CL-2024-999,Orphan Matter\n")

	done := make(chan error, 1)
	go func() {
		done <- h.runner.Run(context.Background(), []File{
			{Path: clients, Entity: schema.Clients},
			{Path: matters, Entity: schema.Matters},
		})
	}()

	// Wait for the job to suspend on the unresolved-reference question.
	deadline := time.After(5 * time.Second)
	for h.job.Status() != job.StatusWaitingInput {
		select {
		case <-deadline:
			t.Fatal("job never reached waiting_input")
		case <-time.After(5 * time.Millisecond):
		}
	}

	h.ch.Cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if got := h.job.Status(); got != job.StatusCancelled {
		t.Errorf("status = %s, want cancelled", got)
	}

	// The interrupted matters pass rolled back; the committed clients pass
	// survives.
	if n := h.store.Count(schema.Clients); n != 1 {
		t.Errorf("clients stored = %d, want 1", n)
	}
	if n := h.store.Count(schema.Matters); n != 0 {
		t.Errorf("matters stored = %d, want 0", n)
	}
}

func TestRun_IdempotentRerun(t *testing.T) {
	first := newHarness(t)
	dir := t.TempDir()

	clients := writeFixture(t, dir, "clients.csv",
		"Client Number,Client Name\nCL-2024-001,Meridian Holdings\n")
	matters := writeFixture(t, dir, "matters.csv",
		"MatterNumber,ClientID,Title\nM-1001,CL-2024-001,Contract Review\n")

	files := []File{
		{Path: clients, Entity: schema.Clients},
		{Path: matters, Entity: schema.Matters},
	}

	if err := first.runner.Run(context.Background(), files); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	checkCounters(t, first.job, 2, 0, 0)

	// Second job on the same store, seeded with the first job's index.
	j := job.New()
	ch := question.NewChannel(j.ID())
	sink := audit.NewMemorySink()
	second := New(j, first.store, ch, sink, sink, nil)
	for _, entity := range []schema.EntityType{schema.Clients, schema.Matters} {
		if err := second.Seed(entity, first.runner.Index().Entries(entity)); err != nil {
			t.Fatalf("Seed %s: %v", entity, err)
		}
	}

	if err := second.Run(context.Background(), files); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	checkCounters(t, j, 0, 2, 0)
	if n := first.store.Count(schema.Clients); n != 1 {
		t.Errorf("clients stored after rerun = %d, want 1", n)
	}
	if n := first.store.Count(schema.Matters); n != 1 {
		t.Errorf("matters stored after rerun = %d, want 1", n)
	}
}

func TestRun_StatusReported(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	clients := writeFixture(t, dir, "clients.csv",
		"Client Number,Client Name\nCL-2024-001,Meridian Holdings\n")

	var statuses []job.Status
	h.runner.Reporter = reporterFunc(func(_ string, s job.Status, _ job.Counters) {
		statuses = append(statuses, s)
	})

	if err := h.runner.Run(context.Background(), []File{{Path: clients, Entity: schema.Clients}}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(statuses) < 2 || statuses[0] != job.StatusProcessing || statuses[len(statuses)-1] != job.StatusCompleted {
		t.Errorf("statuses = %v, want processing first and completed last", statuses)
	}
}

type reporterFunc func(string, job.Status, job.Counters)

func (f reporterFunc) SetStatus(id string, s job.Status, c job.Counters) { f(id, s, c) }
