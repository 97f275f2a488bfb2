package memory

import (
	"context"
	"testing"
	"time"

	"standsim/pkg/domain"
)

func sampleRun(id string, started time.Time) domain.RunRecord {
	return domain.RunRecord{
		ID:        id,
		Scenario:  "thinning",
		StartedAt: started,
		Steps: []domain.StepRecord{{
			ID:        1,
			Operation: "LOAD",
			Plots:     []domain.PlotSnapshot{{PlotID: 7, Age: 30, Density: 800, Printable: true}},
		}},
	}
}

func TestSaveGetListDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := store.SaveRun(ctx, sampleRun("b", base.Add(time.Hour))); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveRun(ctx, sampleRun("a", base)); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := store.GetRun(ctx, "b")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Steps[0].Plots[0].PlotID != 7 {
		t.Fatalf("unexpected run %+v", got)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "a" || runs[1].ID != "b" {
		t.Fatalf("expected runs ordered by start time, got %+v", runs)
	}

	if err := store.DeleteRun(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.GetRun(ctx, "a"); ok {
		t.Fatalf("expected run a to be deleted")
	}
	if err := store.DeleteRun(ctx, "missing"); err != nil {
		t.Fatalf("delete unknown id: %v", err)
	}
}

func TestSaveRejectsEmptyID(t *testing.T) {
	if err := NewStore().SaveRun(context.Background(), domain.RunRecord{}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestReturnedRunsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	run := sampleRun("x", time.Now())
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save: %v", err)
	}
	run.Steps[0].Plots[0].Age = 99

	got, _, _ := store.GetRun(ctx, "x")
	got.Steps[0].Plots[0].Density = 1
	again, _, _ := store.GetRun(ctx, "x")
	if again.Steps[0].Plots[0].Age != 30 || again.Steps[0].Plots[0].Density != 800 {
		t.Fatalf("store state leaked through copies: %+v", again.Steps[0].Plots[0])
	}
}

func TestExportImportState(t *testing.T) {
	ctx := context.Background()
	src := NewStore()
	_ = src.SaveRun(ctx, sampleRun("r1", time.Unix(10, 0)))
	_ = src.SaveRun(ctx, sampleRun("r2", time.Unix(20, 0)))

	dst := NewStore()
	snapshot := src.ExportState()
	snapshot.Runs = append(snapshot.Runs, domain.RunRecord{})
	dst.ImportState(snapshot)
	runs, _ := dst.ListRuns(ctx)
	if len(runs) != 2 {
		t.Fatalf("expected 2 imported runs, got %d", len(runs))
	}
}
