package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Command is one line sent during a run and what came back.
type Command struct {
	RunID     string
	Seq       int
	Line      string
	Reply     string
	Error     string
	SentAt    time.Time
	RepliedAt *time.Time
}

// CommandRepository provides access to the commands table.
type CommandRepository struct {
	db *DB
}

// NewCommandRepository creates a new command repository.
func NewCommandRepository(db *DB) *CommandRepository {
	return &CommandRepository{db: db}
}

// Record appends one command outcome to a run.
func (r *CommandRepository) Record(c Command) error {
	var replied any
	if c.RepliedAt != nil {
		replied = formatTime(*c.RepliedAt)
	}
	_, err := r.db.Exec(`
		INSERT INTO commands (run_id, seq, line, reply, error, sent_at, replied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.RunID, c.Seq, c.Line, nullString(c.Reply), nullString(c.Error), formatTime(c.SentAt), replied)
	if err != nil {
		return fmt.Errorf("failed to record command %d of run %s: %w", c.Seq, c.RunID, err)
	}
	return nil
}

// ForRun returns the commands of a run in send order.
func (r *CommandRepository) ForRun(runID string) ([]Command, error) {
	rows, err := r.db.Query(`
		SELECT run_id, seq, line, reply, error, sent_at, replied_at
		FROM commands WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list commands: %w", err)
	}
	defer rows.Close()

	var cmds []Command
	for rows.Next() {
		var (
			c              Command
			reply, errText sql.NullString
			sent           string
			replied        sql.NullString
		)
		if err := rows.Scan(&c.RunID, &c.Seq, &c.Line, &reply, &errText, &sent, &replied); err != nil {
			return nil, err
		}
		if c.SentAt, err = parseTime(sent); err != nil {
			return nil, err
		}
		if replied.Valid {
			t, err := parseTime(replied.String)
			if err != nil {
				return nil, err
			}
			c.RepliedAt = &t
		}
		c.Reply = reply.String
		c.Error = errText.String
		cmds = append(cmds, c)
	}
	return cmds, rows.Err()
}
