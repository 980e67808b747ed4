// Package solver is the boundary to the external cube-solving oracle.
package solver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/cjeanneret/CubeGo/internal/cube"
	"github.com/cjeanneret/CubeGo/internal/debug"
	"github.com/cjeanneret/CubeGo/internal/records"
)

var (
	// ErrUnsolvable is returned when the oracle rejects a facelet string.
	ErrUnsolvable = errors.New("solver: unsolvable or invalid cube state")
	// ErrUnavailable is returned when the oracle cannot be run at all.
	ErrUnavailable = errors.New("solver: oracle unavailable")
)

// Oracle solves a facelet string and returns a space-delimited move string.
// It is synchronous and blocking.
type Oracle interface {
	Solve(ctx context.Context, facelets cube.Facelets) (string, error)
}

// FuncOracle adapts a function to Oracle.
type FuncOracle func(ctx context.Context, facelets cube.Facelets) (string, error)

func (f FuncOracle) Solve(ctx context.Context, facelets cube.Facelets) (string, error) {
	return f(ctx, facelets)
}

// Gateway calls an Oracle once per request. It neither retries nor
// rewrites the move list.
type Gateway struct {
	oracle Oracle
}

// NewGateway returns a Gateway over oracle.
func NewGateway(oracle Oracle) *Gateway {
	return &Gateway{oracle: oracle}
}

// Solve returns the oracle's move tokens in order. The facelet string must
// be 54 face letters; oracle errors are returned unchanged.
func (g *Gateway) Solve(ctx context.Context, facelets cube.Facelets) ([]string, error) {
	if err := facelets.CheckAlphabet(); err != nil {
		return nil, err
	}
	debug.Verbose("Solving %s", facelets)
	reply, err := g.oracle.Solve(ctx, facelets)
	if err != nil {
		return nil, err
	}
	tokens := strings.Fields(reply)
	debug.Info("Solution: %d moves", len(tokens))
	return tokens, nil
}

// ExecOracle runs an external solver program. The facelet string is
// appended to Command and the program prints the solution on stdout.
// A non-zero exit or output starting with "Error" means the state was
// rejected.
type ExecOracle struct {
	Command []string
}

func (o ExecOracle) Solve(ctx context.Context, facelets cube.Facelets) (string, error) {
	if len(o.Command) == 0 {
		return "", fmt.Errorf("%w: no solver command configured", ErrUnavailable)
	}
	args := append(append([]string{}, o.Command[1:]...), string(facelets))
	cmd := exec.CommandContext(ctx, o.Command[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := strings.TrimSpace(stdout.String())
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || ctx.Err() != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrUnavailable, o.Command[0], err)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = out
		}
		if msg == "" {
			msg = exitErr.Error()
		}
		return "", fmt.Errorf("%w: %s", ErrUnsolvable, lastLine(msg))
	}
	if strings.HasPrefix(out, "Error") {
		return "", fmt.Errorf("%w: %s", ErrUnsolvable, out)
	}
	return out, nil
}

// lastLine keeps the final line of a traceback, which carries the message.
func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

// RecordOracle replays the solution stored in a facelet/solution record.
type RecordOracle struct {
	Path string
}

func (o RecordOracle) Solve(_ context.Context, facelets cube.Facelets) (string, error) {
	rec, err := records.LoadSolution(o.Path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if rec.FaceletString != string(facelets) {
		return "", fmt.Errorf("%w: record %s holds %s", ErrUnsolvable, o.Path, rec.FaceletString)
	}
	return rec.Solution, nil
}
