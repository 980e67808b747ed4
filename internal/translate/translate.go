// Package translate maps solver move tokens to motor commands.
package translate

import (
	"fmt"

	"github.com/cjeanneret/CubeGo/internal/config"
	"github.com/cjeanneret/CubeGo/internal/cube"
	"github.com/cjeanneret/CubeGo/internal/debug"
	"github.com/cjeanneret/CubeGo/internal/protocol"
)

// Table is the static token → command table. It is immutable once built.
type Table struct {
	entries map[string]protocol.Command
}

// Options parameterize a Table.
type Options struct {
	// MotorForFace gives the motor index turning each face.
	MotorForFace map[cube.Face]int
	// QuarterTurns is the number of base turns in a quarter move.
	QuarterTurns int
	// HalfTurns is the number of base turns in a half move.
	HalfTurns int
}

// DefaultOptions is the reference rig: motors 0..5 turn U R F D L B, a base
// turn is 45° so quarter moves take 2 and half moves 4.
func DefaultOptions() Options {
	m := make(map[cube.Face]int, len(cube.Faces))
	for i, f := range cube.Faces {
		m[f] = i
	}
	return Options{MotorForFace: m, QuarterTurns: 2, HalfTurns: 4}
}

// OptionsFromConfig derives table options from the motors and mechanics
// sections.
func OptionsFromConfig(cfg *config.Config) Options {
	m := make(map[cube.Face]int, len(cfg.Motors))
	for i, mc := range cfg.Motors {
		m[cube.Face(mc.Face[0])] = i
	}
	return Options{
		MotorForFace: m,
		QuarterTurns: cfg.Mechanics.QuarterTurnBaseTurns,
		HalfTurns:    cfg.Mechanics.HalfTurnBaseTurns,
	}
}

// NewTable builds the table. Faces without a motor have no entries, so
// their tokens are skipped like any unknown token.
func NewTable(opts Options) (*Table, error) {
	if opts.QuarterTurns <= 0 || opts.HalfTurns <= 0 {
		return nil, fmt.Errorf("turn counts must be positive, got quarter=%d half=%d", opts.QuarterTurns, opts.HalfTurns)
	}
	t := &Table{entries: make(map[string]protocol.Command, 18)}
	for _, m := range cube.AllMoves() {
		motor, ok := opts.MotorForFace[m.Face]
		if !ok {
			continue
		}
		c := protocol.Command{Motor: motor, Sense: protocol.CW, Turns: opts.QuarterTurns}
		switch m.Turn {
		case cube.CCW:
			c.Sense = protocol.CCW
		case cube.Double:
			c.Turns = opts.HalfTurns
		}
		t.entries[m.Notation()] = c
	}
	return t, nil
}

// Lookup returns the command for one token.
func (t *Table) Lookup(token string) (protocol.Command, bool) {
	c, ok := t.entries[token]
	return c, ok
}

// Len returns the number of tokens the table knows.
func (t *Table) Len() int {
	return len(t.entries)
}

// Translate maps tokens in order. Unknown tokens are logged and skipped;
// they are returned so callers can report them.
func (t *Table) Translate(tokens []string) (cmds []protocol.Command, skipped []string) {
	cmds = make([]protocol.Command, 0, len(tokens))
	for i, tok := range tokens {
		c, ok := t.Lookup(tok)
		if !ok {
			debug.Warn("Unknown move %q at position %d, skipping", tok, i+1)
			skipped = append(skipped, tok)
			continue
		}
		debug.Verbose("Move %s -> %s", tok, c)
		cmds = append(cmds, c)
	}
	return cmds, skipped
}
