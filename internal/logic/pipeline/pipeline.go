// Package pipeline chains the orchestrator stages: encode the scanned cube,
// ask the oracle for a solution, translate it to motor commands and play
// them on the actuator, journaling every command.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/cjeanneret/CubeGo/internal/cube"
	"github.com/cjeanneret/CubeGo/internal/debug"
	"github.com/cjeanneret/CubeGo/internal/link"
	"github.com/cjeanneret/CubeGo/internal/protocol"
	"github.com/cjeanneret/CubeGo/internal/records"
	"github.com/cjeanneret/CubeGo/internal/session"
	"github.com/cjeanneret/CubeGo/internal/solver"
	"github.com/cjeanneret/CubeGo/internal/translate"
)

// ErrSolutionMismatch is returned when verification is on and the oracle's
// moves do not solve the encoded cube.
var ErrSolutionMismatch = errors.New("pipeline: solution does not solve the cube")

// Journal records runs. A nil Journal disables journaling.
type Journal interface {
	Start(kind string, plan *Plan) (runID string, err error)
	Command(runID string, ev session.Event) error
	Finish(runID string, rep session.Report) error
}

// Config wires the stages together.
type Config struct {
	Gateway *solver.Gateway
	Table   *translate.Table
	Dialer  link.Dialer
	Session session.Options
	Encode  cube.EncodeOptions

	// Verify replays the solution on the cube model before any motor moves.
	Verify bool
	// SolutionRecord, when set, receives the facelets and solution as JSON.
	SolutionRecord string
	Journal        Journal
}

// Plan is what will be sent to the actuator.
type Plan struct {
	Facelets cube.Facelets // empty for manual move strings
	Tokens   []string
	Commands []protocol.Command
	Skipped  []string
}

// Solution returns the tokens joined as a move string.
func (p *Plan) Solution() string {
	return joinTokens(p.Tokens)
}

// Result is the outcome of an executed plan.
type Result struct {
	RunID  string
	Plan   *Plan
	Report session.Report
}

// Pipeline runs plans against one actuator.
type Pipeline struct {
	cfg Config
}

// New returns a pipeline. Gateway is only needed for Solve.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Table == nil {
		return nil, fmt.Errorf("pipeline: move table is required")
	}
	return &Pipeline{cfg: cfg}, nil
}

// Solve encodes state and returns the oracle's solution as a plan. No
// motor moves.
func (p *Pipeline) Solve(ctx context.Context, state cube.State) (*Plan, error) {
	debug.Section("Encoding")
	facelets, err := cube.Encode(state, p.cfg.Encode)
	if err != nil {
		return nil, err
	}
	debug.Value("facelets", facelets)
	return p.SolveFacelets(ctx, facelets)
}

// SolveFacelets is Solve for an already encoded cube.
func (p *Pipeline) SolveFacelets(ctx context.Context, facelets cube.Facelets) (*Plan, error) {
	if p.cfg.Gateway == nil {
		return nil, fmt.Errorf("pipeline: no solver configured")
	}
	debug.Section("Solving")
	tokens, err := p.cfg.Gateway.Solve(ctx, facelets)
	if err != nil {
		return nil, err
	}
	debug.Value("solution", joinTokens(tokens))

	if p.cfg.Verify {
		if err := verify(facelets, tokens); err != nil {
			return nil, err
		}
		debug.Verbose("Solution verified on the cube model")
	}
	if p.cfg.SolutionRecord != "" {
		rec := records.Solution{FaceletString: string(facelets), Solution: joinTokens(tokens)}
		if err := records.SaveSolution(p.cfg.SolutionRecord, rec); err != nil {
			return nil, err
		}
	}

	plan := p.Translate(tokens)
	plan.Facelets = facelets
	return plan, nil
}

// Translate builds a plan from move tokens.
func (p *Pipeline) Translate(tokens []string) *Plan {
	cmds, skipped := p.cfg.Table.Translate(tokens)
	return &Plan{Tokens: tokens, Commands: cmds, Skipped: skipped}
}

// Execute plays plan on the actuator in one session. kind labels the run in
// the journal. The returned result is meaningful even when err is non-nil.
func (p *Pipeline) Execute(ctx context.Context, kind string, plan *Plan) (*Result, error) {
	res := &Result{Plan: plan}
	opts := p.cfg.Session

	if j := p.cfg.Journal; j != nil {
		id, err := j.Start(kind, plan)
		if err != nil {
			return res, err
		}
		res.RunID = id
		next := opts.OnCommand
		opts.OnCommand = func(ev session.Event) {
			if err := j.Command(id, ev); err != nil {
				debug.Warn("Journal: %v", err)
			}
			if next != nil {
				next(ev)
			}
		}
	}

	debug.Section("Actuation")
	debug.Info("Sending %d commands to %s", len(plan.Commands), p.cfg.Dialer)
	rep, err := session.Run(ctx, p.cfg.Dialer, opts, plan.Commands)
	res.Report = rep

	if res.RunID != "" {
		if jerr := p.cfg.Journal.Finish(res.RunID, rep); jerr != nil {
			debug.Warn("Journal: %v", jerr)
		}
	}
	if err != nil {
		return res, err
	}
	debug.Summary(fmt.Sprintf("Run %s: %d/%d commands acknowledged", rep.State, rep.Acked, rep.Total))
	return res, nil
}

// Run solves state and plays the solution.
func (p *Pipeline) Run(ctx context.Context, state cube.State) (*Result, error) {
	plan, err := p.Solve(ctx, state)
	if err != nil {
		return nil, err
	}
	return p.Execute(ctx, KindSolve, plan)
}

// Send plays a literal move string, for jogging the robot by hand.
func (p *Pipeline) Send(ctx context.Context, moves string) (*Result, error) {
	return p.Execute(ctx, KindSend, p.Translate(splitTokens(moves)))
}

// verify applies the translatable tokens to the cube model. Tokens the
// model does not know are skipped, as the translator skips them.
func verify(facelets cube.Facelets, tokens []string) error {
	moves := make([]cube.Move, 0, len(tokens))
	for _, tok := range tokens {
		m, err := cube.ParseMove(tok)
		if err != nil {
			continue
		}
		moves = append(moves, m)
	}
	ok, err := cube.Solves(facelets, moves)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrSolutionMismatch, joinTokens(tokens))
	}
	return nil
}
