package main

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cjeanneret/CubeGo/internal/cube"
	"github.com/cjeanneret/CubeGo/internal/logic/pipeline"
	"github.com/cjeanneret/CubeGo/internal/protocol"
	"github.com/cjeanneret/CubeGo/internal/records"
	"github.com/cjeanneret/CubeGo/internal/store"
	"github.com/cjeanneret/CubeGo/internal/translate"
)

func newEncodeCmd(o *options) *cobra.Command {
	var src cubeSource
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Print the facelet string of the scanned cube",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load()
			if err != nil {
				return err
			}
			f, err := src.facelets(o, cfg, nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(o.out, f)
			return nil
		},
	}
	src.bind(cmd)
	return cmd
}

func newSolveCmd(o *options) *cobra.Command {
	var (
		src    cubeSource
		cached bool
	)
	cmd := &cobra.Command{
		Use:   "solve [facelets]",
		Short: "Solve the scanned cube and print the motor commands, without moving",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load()
			if err != nil {
				return err
			}
			f, err := src.facelets(o, cfg, args)
			if err != nil {
				return err
			}
			oracle, err := o.oracleFor(cfg, cached)
			if err != nil {
				return err
			}
			p, closer, err := o.pipelineFor(cfg, oracle, o.solutionRecord(cached))
			if err != nil {
				return err
			}
			defer closer()

			plan, err := p.SolveFacelets(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprint(o.out, renderPlan(plan))
			return nil
		},
	}
	src.bind(cmd)
	cmd.Flags().BoolVar(&cached, "cached", false, "replay the solution saved in "+records.SolutionFile+" instead of calling the solver")
	return cmd
}

func newRunCmd(o *options) *cobra.Command {
	var (
		src    cubeSource
		cached bool
	)
	cmd := &cobra.Command{
		Use:   "run [facelets]",
		Short: "Solve the scanned cube and play the solution on the robot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load()
			if err != nil {
				return err
			}
			f, err := src.facelets(o, cfg, args)
			if err != nil {
				return err
			}
			oracle, err := o.oracleFor(cfg, cached)
			if err != nil {
				return err
			}
			p, closer, err := o.pipelineFor(cfg, oracle, o.solutionRecord(cached))
			if err != nil {
				return err
			}
			defer closer()

			plan, err := p.SolveFacelets(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprint(o.out, renderPlan(plan))
			res, err := p.Execute(cmd.Context(), pipeline.KindSolve, plan)
			fmt.Fprintln(o.out, renderReport(res))
			return err
		},
	}
	src.bind(cmd)
	cmd.Flags().BoolVar(&cached, "cached", false, "replay the solution saved in "+records.SolutionFile+" instead of calling the solver")
	return cmd
}

func newSendCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "send <moves>...",
		Short: "Play a literal move sequence, e.g. cubego send R U R\\' U\\'",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load()
			if err != nil {
				return err
			}
			p, closer, err := o.pipelineFor(cfg, nil, "")
			if err != nil {
				return err
			}
			defer closer()

			res, err := p.Send(cmd.Context(), strings.Join(args, " "))
			fmt.Fprintln(o.out, renderReport(res))
			return err
		},
	}
}

func newScrambleCmd(o *options) *cobra.Command {
	var (
		length       int
		seed         uint64
		execute      bool
		motorShuffle bool
		saveState    bool
	)
	cmd := &cobra.Command{
		Use:   "scramble",
		Short: "Generate a random scramble, optionally playing it on the robot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load()
			if err != nil {
				return err
			}
			if length <= 0 {
				return fmt.Errorf("--length must be positive, got %d", length)
			}
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			moves := cube.Scramble(rand.New(rand.NewPCG(seed, seed)), length)
			c := cube.NewSolved()
			c.ApplyAll(moves)

			fmt.Fprintf(o.out, "Scramble: %s\n", cube.FormatMoves(moves))
			fmt.Fprintf(o.out, "Seed:     %d\n", seed)
			fmt.Fprintf(o.out, "Facelets: %s\n", c.Facelets())

			if saveState {
				state, err := cube.Decode(c.Facelets(), cube.DefaultPalette, cube.EncodeOptions{ReverseTop: cfg.Encoding.ReverseTop})
				if err != nil {
					return err
				}
				if err := records.SaveCubeState(o.record(records.CubeStateFile), state); err != nil {
					return err
				}
			}

			if motorShuffle {
				table, err := translate.NewTable(translate.OptionsFromConfig(cfg))
				if err != nil {
					return err
				}
				cmds, _ := table.Translate(cube.Tokens(moves))
				if err := records.SaveShuffle(o.record(records.ShuffleFile), shuffleRecord(cmds)); err != nil {
					return err
				}
			}

			if !execute {
				return nil
			}
			p, closer, err := o.pipelineFor(cfg, nil, "")
			if err != nil {
				return err
			}
			defer closer()
			res, err := p.Execute(cmd.Context(), pipeline.KindScramble, p.Translate(cube.Tokens(moves)))
			fmt.Fprintln(o.out, renderReport(res))
			return err
		},
	}
	cmd.Flags().IntVarP(&length, "length", "n", 20, "number of moves")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 = time based)")
	cmd.Flags().BoolVar(&execute, "execute", false, "play the scramble on the robot")
	cmd.Flags().BoolVar(&motorShuffle, "motor-shuffle", false, "write the per-motor turn count record ("+records.ShuffleFile+")")
	cmd.Flags().BoolVar(&saveState, "save-state", false, "write the scrambled cube as a cube-state record ("+records.CubeStateFile+")")
	return cmd
}

// shuffleRecord counts base turns per motor.
func shuffleRecord(cmds []protocol.Command) records.Shuffle {
	s := make(records.Shuffle)
	for _, c := range cmds {
		s[c.Motor] += c.Turns
	}
	return s
}

func newShowCmd(o *options) *cobra.Command {
	var src cubeSource
	cmd := &cobra.Command{
		Use:   "show [facelets]",
		Short: "Draw the cube net",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load()
			if err != nil {
				return err
			}
			f, err := src.facelets(o, cfg, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(o.out, renderNet(f, cube.DefaultPalette))
			return nil
		},
	}
	src.bind(cmd)
	return cmd
}

func newHistoryCmd(o *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List journaled runs, or the commands of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load()
			if err != nil {
				return err
			}
			if cfg.Store.Path == "" {
				return fmt.Errorf("store.path is not configured")
			}
			db, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			if len(args) == 1 {
				run, err := store.NewRunRepository(db).Get(args[0])
				if err != nil {
					return err
				}
				cmds, err := store.NewCommandRepository(db).ForRun(run.RunID)
				if err != nil {
					return err
				}
				fmt.Fprintln(o.out, renderRunDetail(run, cmds))
				return nil
			}

			runs, err := store.NewRunRepository(db).Recent(limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(o.out, renderRuns(runs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to list")
	return cmd
}
