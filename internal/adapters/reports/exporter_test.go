package reports

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"standsim/internal/blob"
	"standsim/internal/core"
	"standsim/internal/report"
	"standsim/internal/scenario"
	"standsim/pkg/domain"
)

type captureAudit struct {
	mu      sync.Mutex
	entries []core.AuditEntry
}

func (c *captureAudit) Record(_ context.Context, entry core.AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *captureAudit) statuses() []core.AuditStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.AuditStatus, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Status
	}
	return out
}

func runSteps() []*core.Step {
	inv := domain.NewInventory(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	for _, id := range []int{1, 2} {
		plot := domain.NewPlot(id)
		plot.Age, plot.Density, plot.QMDBH, plot.BasalArea, plot.Vol = 30, 500, 20, 15.7, 120
		tree := domain.NewTree(id, 1)
		tree.Expan, tree.BasalArea, tree.Vol = 500, 314, 240
		_ = plot.AddTree(tree)
		inv.AddPlot(plot, true)
	}
	op := core.Operation{Kind: core.OperationInit, ModelKey: "psylvestris", Gate: domain.DefaultAgeGate()}
	return []*core.Step{{ID: 1, Kind: core.OperationInit, Age: 30, Operation: op, Inventory: inv, ByMeans: op.CutLabel()}}
}

func waitFor(t *testing.T, w *Worker, id string) (ExportRecord, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return w.Wait(ctx, id)
}

func TestWorkerStoresArtifacts(t *testing.T) {
	store := blob.NewMemory()
	audit := &captureAudit{}
	w := NewWorker(store, WithAuditRecorder(audit))
	w.Start()
	defer func() { _ = w.Stop(context.Background()) }()

	queued, err := w.EnqueueExport(context.Background(), ExportInput{
		RunID:   "run-1",
		Steps:   runSteps(),
		Options: report.Options{Scenario: "growth", Decimals: 2},
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if queued.Status != ExportStatusQueued || queued.Type != scenario.OutputXLSX || queued.ID == "" {
		t.Fatalf("unexpected queued record %+v", queued)
	}

	record, err := waitFor(t, w, queued.ID)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if record.Status != ExportStatusSucceeded || record.CompletedAt == nil || len(record.Artifacts) != 2 {
		t.Fatalf("unexpected record %+v", record)
	}
	first := record.Artifacts[0]
	if first.Key != "runs/run-1/Output_Plot_1.xlsx" || first.ContentType != blob.ContentTypeXLSX || first.SizeBytes == 0 {
		t.Fatalf("unexpected artifact %+v", first)
	}
	if first.URL != "" {
		t.Fatalf("memory store has no links, got %q", first.URL)
	}

	info, body, err := store.Get(context.Background(), first.Key)
	if err != nil {
		t.Fatalf("get artifact: %v", err)
	}
	defer func() { _ = body.Close() }()
	if info.Metadata["run_id"] != "run-1" || info.Metadata["export_id"] != queued.ID {
		t.Fatalf("unexpected metadata %+v", info.Metadata)
	}

	got := audit.statuses()
	want := []core.AuditStatus{core.AuditStatusQueued, core.AuditStatusRunning, core.AuditStatusSuccess}
	if len(got) != len(want) {
		t.Fatalf("unexpected audit trail %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected audit trail %v", got)
		}
	}
	if last := audit.entries[len(audit.entries)-1]; last.Reference != queued.ID || last.RunID != "run-1" || last.Duration < 0 {
		t.Fatalf("unexpected audit entry %+v", last)
	}
}

func TestWorkerBundlesJSON(t *testing.T) {
	w := NewWorker(blob.NewMemory())
	w.Start()
	defer func() { _ = w.Stop(context.Background()) }()

	queued, err := w.EnqueueExport(context.Background(), ExportInput{
		RunID:   "run-2",
		Steps:   runSteps(),
		Options: report.Options{Scenario: "growth", Type: scenario.OutputJSON, Zip: true},
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	record, err := waitFor(t, w, queued.ID)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if len(record.Artifacts) != 1 || record.Artifacts[0].Name != "growth.zip" || record.Artifacts[0].ContentType != blob.ContentTypeZip {
		t.Fatalf("unexpected artifacts %+v", record.Artifacts)
	}
	if !record.Zip || record.Type != scenario.OutputJSON {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestWorkerFailsOnExistingArtifact(t *testing.T) {
	store := blob.NewMemory()
	if _, err := store.Put(context.Background(), blob.ArtifactKey("run-3", "Output_Plot_1.xlsx"), bytes.NewReader([]byte("x")), blob.PutOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	audit := &captureAudit{}
	w := NewWorker(store, WithAuditRecorder(audit))
	w.Start()
	defer func() { _ = w.Stop(context.Background()) }()

	queued, err := w.EnqueueExport(context.Background(), ExportInput{RunID: "run-3", Steps: runSteps()})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	record, err := waitFor(t, w, queued.ID)
	if err == nil || record.Status != ExportStatusFailed {
		t.Fatalf("expected failure, got %+v", record)
	}
	if !strings.Contains(record.Error, "Output_Plot_1.xlsx") {
		t.Fatalf("error should name the artifact: %s", record.Error)
	}
	got := audit.statuses()
	if got[len(got)-1] != core.AuditStatusError {
		t.Fatalf("unexpected audit trail %v", got)
	}
}

func TestEnqueueExportValidation(t *testing.T) {
	steps := runSteps()
	cases := []struct {
		name   string
		worker *Worker
		input  ExportInput
	}{
		{"no store", NewWorker(nil), ExportInput{RunID: "r", Steps: steps}},
		{"no run", NewWorker(blob.NewMemory()), ExportInput{Steps: steps}},
		{"no steps", NewWorker(blob.NewMemory()), ExportInput{RunID: "r"}},
		{"bad type", NewWorker(blob.NewMemory()), ExportInput{RunID: "r", Steps: steps, Options: report.Options{Type: "CSV"}}},
	}
	for _, tc := range cases {
		if _, err := tc.worker.EnqueueExport(context.Background(), tc.input); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestEnqueueExportQueueFull(t *testing.T) {
	w := NewWorker(blob.NewMemory(), WithQueueSize(1))
	first, err := w.EnqueueExport(context.Background(), ExportInput{RunID: "r", Steps: runSteps()})
	if err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if _, err := w.EnqueueExport(context.Background(), ExportInput{RunID: "r", Steps: runSteps()}); err == nil {
		t.Fatal("expected queue full error")
	}
	if rec, ok := w.GetExport(first.ID); !ok || rec.Status != ExportStatusQueued {
		t.Fatalf("first export should stay queued: %+v", rec)
	}
	if _, ok := w.GetExport("missing"); ok {
		t.Fatal("unknown export must not be found")
	}
	if _, err := w.Wait(context.Background(), "missing"); err == nil {
		t.Fatal("waiting on an unknown export must fail")
	}
	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
