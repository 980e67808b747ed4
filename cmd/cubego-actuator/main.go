// Command cubego-actuator is the daemon running on the robot's Raspberry
// Pi. It accepts motor commands over TCP and drives the face steppers.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cjeanneret/CubeGo/internal/actuator"
	"github.com/cjeanneret/CubeGo/internal/config"
	"github.com/cjeanneret/CubeGo/internal/debug"
	"github.com/cjeanneret/CubeGo/internal/hw/gpio"
	"github.com/cjeanneret/CubeGo/internal/logic/motion"
	"github.com/cjeanneret/CubeGo/internal/web"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath    string
		debugLevel int
		webPort    = &webPortFlag{defaultPort: 8080}
	)
	cmd := &cobra.Command{
		Use:   "cubego-actuator",
		Short: "Drive the cube robot's steppers from protocol commands",
		Long: `cubego-actuator listens for M<motor>_<CW|CCW>_<turns> lines, one client at a
time, turns each into a step-pulse train and answers DONE or ERROR.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if debugLevel != -1 {
				if err := config.ValidateDebugLevel(debugLevel); err != nil {
					return fmt.Errorf("--debug: %w", err)
				}
			}
			if err := config.ValidateConfigPath(cfgPath); err != nil {
				return err
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if debugLevel >= 0 {
				cfg.Defaults.DebugLevel = debugLevel
			}
			if p := webPort.port(); p > 0 {
				cfg.Actuator.StatusPort = p
			}
			return serve(cmd.Context(), cfg, cfgPath)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", filepath.Join("configs", "default.yaml"), "path to config file")
	cmd.Flags().IntVarP(&debugLevel, "debug", "v", -1, "debug level 0-4 (default: defaults.debug_level)")
	cmd.Flags().Var(webPort, "web", "serve the status endpoints on port; --web alone uses 8080 (default: actuator.status_port)")
	cmd.Flags().Lookup("web").NoOptDefVal = strconv.Itoa(webPort.defaultPort)
	return cmd
}

// serve runs the actuator until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, cfgPath string) error {
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)

	debug.Step(1, "Initializing GPIO driver")
	driver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		return fmt.Errorf("init GPIO: %w", err)
	}
	// Pins are only released at shutdown.
	defer func() {
		if err := driver.Close(); err != nil {
			debug.Warn("closing GPIO driver: %v", err)
		}
	}()

	debug.Step(2, "Initializing face motors")
	ctrl, err := motion.NewController(driver, cfg)
	if err != nil {
		return err
	}
	for _, m := range cfg.Motors {
		debug.PrintStruct("Motor "+m.Face, m)
	}
	if err := ctrl.EnableMotors(); err != nil {
		return fmt.Errorf("enable motors: %w", err)
	}
	defer func() {
		if err := ctrl.DisableMotors(); err != nil {
			debug.Warn("disabling motors: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 2)
	running := 1

	if cfg.Actuator.StatusPort > 0 {
		debug.Step(3, "Starting status server")
		broadcaster := web.NewLogBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, broadcaster.Writer()))
		srv := web.NewServer(fmt.Sprintf(":%d", cfg.Actuator.StatusPort), broadcaster, ctrl)
		running++
		go func() {
			if err := srv.Run(ctx); err != nil {
				errCh <- fmt.Errorf("status server: %w", err)
				return
			}
			errCh <- nil
		}()
	}

	go func() {
		errCh <- actuator.NewServer(ctrl).ListenAndServe(ctx, cfg.Actuator.Listen)
	}()

	// Whichever server returns first stops the other.
	var first error
	for ; running > 0; running-- {
		if err := <-errCh; err != nil && first == nil {
			first = err
		}
		cancel()
	}
	return first
}

// webPortFlag implements pflag.Value for --web: unset keeps the configured
// port, --web alone selects defaultPort, --web=8980 a custom one.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) Type() string { return "port" }

func (w *webPortFlag) port() int { return w.val }
