// Command cubego is the orchestrator: it encodes a scanned cube, asks the
// solver for a move sequence and plays it on the actuator.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cjeanneret/CubeGo/internal/config"
	"github.com/cjeanneret/CubeGo/internal/cube"
	"github.com/cjeanneret/CubeGo/internal/debug"
	"github.com/cjeanneret/CubeGo/internal/link"
	"github.com/cjeanneret/CubeGo/internal/logic/pipeline"
	"github.com/cjeanneret/CubeGo/internal/records"
	"github.com/cjeanneret/CubeGo/internal/scan"
	"github.com/cjeanneret/CubeGo/internal/session"
	"github.com/cjeanneret/CubeGo/internal/solver"
	"github.com/cjeanneret/CubeGo/internal/store"
	"github.com/cjeanneret/CubeGo/internal/translate"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

// options holds the persistent flags shared by every subcommand.
type options struct {
	configPath string
	debugLevel int
	recordsDir string
	out        io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	o := &options{out: out}
	root := &cobra.Command{
		Use:   "cubego",
		Short: "Solve a Rubik's cube on the robot",
		Long: `cubego encodes a scanned cube into a facelet string, obtains a solution
from the configured solver and plays it on the actuator daemon, one
acknowledged motor command at a time.`,
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&o.configPath, "config", filepath.Join("configs", "default.yaml"), "path to config file")
	root.PersistentFlags().IntVarP(&o.debugLevel, "debug", "v", -1, "debug level 0-4 (default: defaults.debug_level)")
	root.PersistentFlags().StringVar(&o.recordsDir, "records", ".", "directory of the JSON records (cube_colors.json, cube_solution.json, ...)")

	root.AddCommand(
		newEncodeCmd(o),
		newSolveCmd(o),
		newRunCmd(o),
		newSendCmd(o),
		newScrambleCmd(o),
		newShowCmd(o),
		newHistoryCmd(o),
	)
	return root
}

// load reads the configuration and initializes logging.
func (o *options) load() (*config.Config, error) {
	if o.debugLevel != -1 {
		if err := config.ValidateDebugLevel(o.debugLevel); err != nil {
			return nil, fmt.Errorf("--debug: %w", err)
		}
	}
	if err := config.ValidateConfigPath(o.configPath); err != nil {
		return nil, err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.Defaults.DebugLevel
	if o.debugLevel >= 0 {
		level = o.debugLevel
	}
	debug.Init(level)
	debug.Value("Config path", o.configPath)
	return cfg, nil
}

func (o *options) record(name string) string {
	return filepath.Join(o.recordsDir, name)
}

// cubeSource selects where the scanned cube comes from.
type cubeSource struct {
	statePath       string
	samplesPath     string
	calibrationPath string
}

func (s *cubeSource) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.statePath, "state", "", "cube-state record (default: <records>/"+records.CubeStateFile+")")
	cmd.Flags().StringVar(&s.samplesPath, "samples", "", "per-face HSV samples to classify instead of a cube-state record")
	cmd.Flags().StringVar(&s.calibrationPath, "calibration", "", "color calibration (default: <records>/"+records.CalibrationFile+")")
}

// state loads the scanned cube.
func (s *cubeSource) state(o *options) (cube.State, error) {
	if s.samplesPath != "" {
		calPath := s.calibrationPath
		if calPath == "" {
			calPath = o.record(records.CalibrationFile)
		}
		cal, err := records.LoadCalibration(calPath)
		if err != nil {
			return nil, err
		}
		samples, err := scan.LoadFaceSamples(s.samplesPath)
		if err != nil {
			return nil, err
		}
		return samples.State(cal, scan.DefaultRowThreshold)
	}
	path := s.statePath
	if path == "" {
		path = o.record(records.CubeStateFile)
	}
	return records.LoadCubeState(path)
}

// facelets returns args[0] when given, the encoded scan otherwise.
func (s *cubeSource) facelets(o *options, cfg *config.Config, args []string) (cube.Facelets, error) {
	if len(args) > 0 {
		f := cube.Facelets(strings.TrimSpace(args[0]))
		if err := f.Validate(); err != nil {
			return "", err
		}
		return f, nil
	}
	state, err := s.state(o)
	if err != nil {
		return "", err
	}
	return cube.Encode(state, cube.EncodeOptions{ReverseTop: cfg.Encoding.ReverseTop})
}

// pipelineFor wires a pipeline from configuration. The returned closer
// releases the journal.
func (o *options) pipelineFor(cfg *config.Config, oracle solver.Oracle, solutionRecord string) (*pipeline.Pipeline, func(), error) {
	table, err := translate.NewTable(translate.OptionsFromConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	dialer, err := link.FromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	pc := pipeline.Config{
		Table:  table,
		Dialer: dialer,
		Session: session.Options{
			AckTimeout:        cfg.AckTimeout(),
			InterCommandDelay: cfg.InterCommandDelay(),
			ReplyBufferBytes:  cfg.Session.ReplyBufferBytes,
		},
		Encode:         cube.EncodeOptions{ReverseTop: cfg.Encoding.ReverseTop},
		Verify:         cfg.Solver.Verify,
		SolutionRecord: solutionRecord,
	}
	if oracle != nil {
		pc.Gateway = solver.NewGateway(oracle)
	}

	closer := func() {}
	if cfg.Store.Path != "" {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		pc.Journal = pipeline.NewStoreJournal(db)
		debug.Value("Run journal", db.Path())
		closer = func() {
			if err := db.Close(); err != nil {
				debug.Warn("closing journal: %v", err)
			}
		}
	}

	p, err := pipeline.New(pc)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return p, closer, nil
}

// solutionRecord is where a fresh solution is saved. A cached solution is
// not written back.
func (o *options) solutionRecord(cached bool) string {
	if cached {
		return ""
	}
	return o.record(records.SolutionFile)
}

// oracleFor returns the configured solver, or the saved solution record
// when cached is set.
func (o *options) oracleFor(cfg *config.Config, cached bool) (solver.Oracle, error) {
	if cached {
		return solver.RecordOracle{Path: o.record(records.SolutionFile)}, nil
	}
	if len(cfg.Solver.Command) == 0 {
		return nil, fmt.Errorf("solver.command is not configured")
	}
	return solver.ExecOracle{Command: cfg.Solver.Command}, nil
}
