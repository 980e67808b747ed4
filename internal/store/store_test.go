package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal", "cubego.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_MigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cubego.db")
	db, err := Open(path)
	require.NoError(t, err)
	v, err := db.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	require.NoError(t, db.Close())

	// Reopening must not re-run the migration.
	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	v, err = db.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, path, db.Path())
}

func TestRuns_CreateFinishGet(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunRepository(db)

	id, err := runs.Create(KindSolve, "UUUUUUUUURRRRRRRRRFFFFFFFFFDDDDDDDDDLLLLLLLLLBBBBBBBBB", "R U", 4)
	require.NoError(t, err)
	require.Len(t, id, 36)

	run, err := runs.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, run.State)
	assert.Equal(t, "R U", run.Solution)
	assert.Equal(t, 4, run.Total)
	assert.Nil(t, run.EndedAt)
	assert.Nil(t, run.FailedAt)
	assert.Zero(t, run.Duration())

	require.NoError(t, runs.Finish(id, Outcome{State: "aborted", Acked: 2, FailedAt: 2, Err: errors.New("rejected: jam")}))
	run, err = runs.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "aborted", run.State)
	assert.Equal(t, 2, run.Acked)
	require.NotNil(t, run.FailedAt)
	assert.Equal(t, 2, *run.FailedAt)
	assert.Equal(t, "rejected: jam", run.Error)
	require.NotNil(t, run.EndedAt)
	assert.False(t, run.EndedAt.Before(run.StartedAt))
}

func TestRuns_FinishCompleted(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunRepository(db)
	id, err := runs.Create(KindSend, "", "F2", 1)
	require.NoError(t, err)

	require.NoError(t, runs.Finish(id, Outcome{State: "completed", Acked: 1, FailedAt: -1}))
	run, err := runs.Get(id)
	require.NoError(t, err)
	assert.Nil(t, run.FailedAt)
	assert.Empty(t, run.Error)
	assert.Empty(t, run.Facelets)
}

func TestRuns_NotFound(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunRepository(db)

	_, err := runs.Get("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, runs.Finish("missing", Outcome{State: "completed", FailedAt: -1}), ErrRunNotFound)
}

func TestRuns_Recent(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunRepository(db)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := runs.Create(KindScramble, "", "U", 1)
		require.NoError(t, err)
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond)
	}

	recent, err := runs.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[2], recent[0].RunID)
	assert.Equal(t, ids[1], recent[1].RunID)
}

func TestCommands_RecordAndList(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunRepository(db)
	cmds := NewCommandRepository(db)

	id, err := runs.Create(KindSolve, "", "R U R'", 3)
	require.NoError(t, err)

	now := time.Now()
	replied := now.Add(400 * time.Millisecond)
	for i, line := range []string{"M1_CW_2", "M0_CW_2"} {
		require.NoError(t, cmds.Record(Command{
			RunID: id, Seq: i, Line: line, Reply: "DONE", SentAt: now, RepliedAt: &replied,
		}))
	}
	require.NoError(t, cmds.Record(Command{
		RunID: id, Seq: 2, Line: "M1_CCW_2", Error: "ack timeout", SentAt: now,
	}))

	got, err := cmds.ForRun(id)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "M1_CW_2", got[0].Line)
	assert.Equal(t, "DONE", got[1].Reply)
	assert.NotNil(t, got[1].RepliedAt)
	assert.Equal(t, "ack timeout", got[2].Error)
	assert.Nil(t, got[2].RepliedAt)
	assert.True(t, got[0].SentAt.Equal(now.UTC()))
}

func TestCommands_RequireRun(t *testing.T) {
	db := openTestDB(t)
	err := NewCommandRepository(db).Record(Command{RunID: "nope", Line: "M0_CW_2", SentAt: time.Now()})
	assert.Error(t, err)
}

func TestTransaction_RollsBack(t *testing.T) {
	db := openTestDB(t)
	boom := errors.New("boom")

	err := db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO runs (run_id, kind, started_at) VALUES ('x', 'send', '2026-01-01T00:00:00Z')`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = NewRunRepository(db).Get("x")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestMigrateUp_FailedMigrationRollsBack(t *testing.T) {
	db := openTestDB(t)
	saved := migrations
	t.Cleanup(func() { migrations = saved })
	migrations = append(migrations[:len(migrations):len(migrations)], struct {
		version int
		sql     string
	}{2, `
		CREATE TABLE half_applied (id INTEGER);
		INSERT INTO missing_table VALUES (1);
		INSERT INTO schema_version (version) VALUES (2);
	`})

	require.Error(t, db.MigrateUp())

	v, err := db.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	var n int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='half_applied'`).Scan(&n))
	assert.Zero(t, n)
}
