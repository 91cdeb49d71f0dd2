package auditdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func TestRecordAndReadBack(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	cur, tgt, err := db.Version()
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if cur != 0 {
		t.Fatalf("current version = %d, want 0", cur)
	}
	if err := db.MigrateUp(context.Background(), tgt); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}

	now := time.Unix(1_700_000_000, 0)
	if err := db.RecordRebuild(RebuildRecord{
		Time:       now,
		Invoker:    "alice",
		Target:     "bob",
		Command:    "/bin/ls",
		Deleted:    2,
		Kept:       5,
		CleanSlate: true,
	}); err != nil {
		t.Fatalf("RecordRebuild: %v", err)
	}
	if err := db.RecordRejection(RejectionRecord{
		Time:    now,
		Invoker: "alice",
		Names:   "LD_LIBRARY_PATH, TZ",
	}); err != nil {
		t.Fatalf("RecordRejection: %v", err)
	}

	recs, err := db.RecentRebuilds(10)
	if err != nil {
		t.Fatalf("RecentRebuilds: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].Invoker != "alice" || recs[0].Target != "bob" || recs[0].Deleted != 2 || recs[0].Kept != 5 || !recs[0].CleanSlate {
		t.Errorf("record = %+v", recs[0])
	}
}

func TestMigrateUpIsIdempotentAtSameVersion(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if err := db.MigrateUp(context.Background(), 1); err != nil {
		t.Fatalf("first MigrateUp: %v", err)
	}
	if err := db.MigrateUp(context.Background(), 1); err != nil {
		t.Fatalf("second MigrateUp (no-op): %v", err)
	}
}
