package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"standsim/internal/infra/persistence/postgres/testutil"
	"standsim/pkg/domain"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func TestNewStoreCreatesStateTable(t *testing.T) {
	_, conn := openStub(t)
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE IF NOT EXISTS STATE") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected state table DDL, got execs: %v", conn.Execs)
	}
}

func TestSaveAndDeleteWriteThrough(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	run := domain.RunRecord{ID: "r1", Scenario: "s", StartedAt: time.Unix(100, 0).UTC()}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save: %v", err)
	}
	rows := conn.Tables["state"]
	if len(rows) != 1 || rows[0]["bucket"] != "run/r1" {
		t.Fatalf("expected one run bucket, got %v", rows)
	}
	if conn.Commits != 1 {
		t.Fatalf("expected a committed transaction, got %d", conn.Commits)
	}
	if _, ok, _ := store.GetRun(ctx, "r1"); !ok {
		t.Fatalf("expected run served from memory")
	}
	if err := store.DeleteRun(ctx, "r1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(conn.Tables["state"]) != 0 {
		t.Fatalf("expected bucket removed, got %v", conn.Tables["state"])
	}
}

func TestNewStoreLoadsExistingRuns(t *testing.T) {
	db, conn := testutil.NewStubDB()
	payload, err := json.Marshal(domain.RunRecord{ID: "old", Scenario: "restored"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	conn.Tables["state"] = []map[string]any{
		{"bucket": "run/old", "payload": payload},
		{"bucket": "meta", "payload": []byte("{}")},
	}
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore(context.Background(), "postgres://stub")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	runs, _ := store.ListRuns(context.Background())
	if len(runs) != 1 || runs[0].Scenario != "restored" {
		t.Fatalf("expected restored run, got %+v", runs)
	}
}

func TestNewStoreErrors(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("boom") })
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected open error")
	}
	restore()

	db, conn := testutil.NewStubDB()
	conn.FailExec = true
	restore = OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected ping error")
	}
}

func TestSaveRunCommitFailure(t *testing.T) {
	store, conn := openStub(t)
	conn.FailCommit = true
	err := store.SaveRun(context.Background(), domain.RunRecord{ID: "x"})
	if err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit error, got %v", err)
	}
}
