package pipeline

import (
	"strings"

	"github.com/cjeanneret/CubeGo/internal/session"
	"github.com/cjeanneret/CubeGo/internal/store"
)

// Run kinds written to the journal.
const (
	KindSolve    = store.KindSolve
	KindSend     = store.KindSend
	KindScramble = store.KindScramble
)

// StoreJournal writes runs to the SQLite journal.
type StoreJournal struct {
	runs *store.RunRepository
	cmds *store.CommandRepository
}

// NewStoreJournal returns a Journal backed by db.
func NewStoreJournal(db *store.DB) *StoreJournal {
	return &StoreJournal{
		runs: store.NewRunRepository(db),
		cmds: store.NewCommandRepository(db),
	}
}

// Start creates the run row.
func (j *StoreJournal) Start(kind string, plan *Plan) (string, error) {
	return j.runs.Create(kind, string(plan.Facelets), plan.Solution(), len(plan.Commands))
}

// Command records one command outcome.
func (j *StoreJournal) Command(runID string, ev session.Event) error {
	c := store.Command{
		RunID:  runID,
		Seq:    ev.Index,
		Line:   ev.Command.String(),
		Reply:  ev.Reply,
		SentAt: ev.SentAt,
	}
	if ev.Err != nil {
		c.Error = ev.Err.Error()
	}
	if !ev.RepliedAt.IsZero() {
		t := ev.RepliedAt
		c.RepliedAt = &t
	}
	return j.cmds.Record(c)
}

// Finish records the session outcome.
func (j *StoreJournal) Finish(runID string, rep session.Report) error {
	return j.runs.Finish(runID, store.Outcome{
		State:    rep.State.String(),
		Acked:    rep.Acked,
		FailedAt: rep.FailedAt,
		Err:      rep.Err,
	})
}

func joinTokens(tokens []string) string {
	return strings.Join(tokens, " ")
}

func splitTokens(moves string) []string {
	return strings.Fields(moves)
}
