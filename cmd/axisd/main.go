// Command axisd runs a single motor axis's control loop against a
// SocketCAN interface, driven by a scenario file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"motorcore/axis"
	"motorcore/canbus"
	"motorcore/persist"
	"motorcore/runner"
	"motorcore/telemetry"
	"motorcore/trajectory"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "cogging" {
		if err := runCoggingSubcommand(os.Args[2:]); err != nil {
			os.Stderr.WriteString("ERROR: " + err.Error() + "\n")
			os.Exit(1)
		}
		return
	}

	var (
		iface        = flag.String("iface", "vcan0", "SocketCAN interface name")
		mapPath      = flag.String("map", "config/can_map.csv", "path to the CAN signal map CSV")
		scenPath     = flag.String("scenario", "scenarios/default.json", "scenario JSON file")
		axisIdx      = flag.Int("axis", 0, "axis index, used to select estimator frames")
		tickHz       = flag.Float64("tick-hz", 8000, "control loop tick rate")
		coggingBins  = flag.Int("cogging-bins", 128, "anti-cogging map length")
		snapshotPath = flag.String("cogging-snapshot", "", "path to a saved anti-cogging snapshot (optional)")
		logPath      = flag.String("log-file", "axisd.log", "log file path")
		logLevel     = flag.String("log", "info", "trace|debug|info|warn|error|critical")
	)
	flag.Parse()

	log, err := telemetry.NewFileLogger(*logPath, parseLevel(*logLevel), true)
	if err != nil {
		os.Stderr.WriteString("ERROR: cannot open log file: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, *iface, *mapPath, *scenPath, *axisIdx, *tickHz, *coggingBins, *snapshotPath); err != nil && err != context.Canceled {
		log.Critical("startup failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *telemetry.Logger, iface, mapPath, scenPath string, axisIdx int, tickHz float64, coggingBins int, snapshotPath string) error {
	cmap, err := canbus.LoadMap(mapPath)
	if err != nil {
		return err
	}

	bus, err := canbus.DialAxisBus(ctx, iface)
	if err != nil {
		return err
	}
	defer bus.Close()

	router := canbus.NewRouter(cmap)

	feed := canbus.NewEstimatorFeed(cmap, "estimator", 100*time.Millisecond)
	feed.Register(router)

	motor := canbus.NewCANMotor(cmap, bus.Writer, "motor_cmd", "torque_cmd_nm", log)
	motor.RegisterLimits(router, "motor_limits", "max_available_torque_nm")

	flux := canbus.NewFluxFeed(0.05)
	flux.Register(router, "flux", "rotor_flux")

	go func() {
		if err := router.Run(ctx, bus.Reader); err != nil && ctx.Err() == nil {
			log.Error("can router stopped: %v", err)
		}
	}()

	cfg := axis.DefaultConfig()
	cfg.Anticogging.CoggingMap = make([]float64, coggingBins)

	var traj trajectory.Trapezoid
	a := axis.New(cfg, tickHz, motor, feed.View(axisIdx), &traj)
	a.SetFluxSource(flux)
	a.SetAxisRegistry(feed)

	if snapshotPath != "" {
		if _, err := persist.Load(snapshotPath, a); err != nil {
			log.Warn("no usable cogging snapshot at %s: %v", snapshotPath, err)
		} else {
			log.Info("loaded cogging snapshot from %s", snapshotPath)
		}
	}

	rcfg := runner.RunnerConfig{
		ScenarioPath: scenPath,
		TickHz:       tickHz,
		AxisLabel:    flag.Arg(0),
	}
	if rcfg.AxisLabel == "" {
		rcfg.AxisLabel = "0"
	}

	r, err := runner.NewRunner(rcfg, log, a, motor)
	if err != nil {
		return err
	}

	err = r.Run(ctx)

	if snapshotPath != "" {
		if saveErr := persist.Save(snapshotPath, a.Config().Anticogging); saveErr != nil {
			log.Error("saving cogging snapshot: %v", saveErr)
		}
	}

	return err
}

// runCoggingSubcommand implements "axisd cogging dump <snapshot>" and
// "axisd cogging load <snapshot> <bins>", a maintenance path for
// inspecting a calibration artifact, or checking that it loads against a
// given bin count, outside of a live control loop. Neither writes the
// snapshot.
func runCoggingSubcommand(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: axisd cogging dump|load <snapshot-path> [bins]")
	}
	switch args[0] {
	case "dump":
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}
		var snap persist.CoggingSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("unmarshal snapshot: %w", err)
		}
		pretty, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		os.Stdout.Write(pretty)
		os.Stdout.WriteString("\n")
		return nil

	case "load":
		if len(args) < 3 {
			return fmt.Errorf("usage: axisd cogging load <snapshot-path> <bins>")
		}
		bins, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid bins %q: %w", args[2], err)
		}
		cfg := axis.DefaultConfig()
		cfg.Anticogging.CoggingMap = make([]float64, bins)
		a := axis.New(cfg, 8000, noopMotor{}, noopEstimator{}, &trajectory.Trapezoid{})
		snap, err := persist.Load(args[1], a)
		if err != nil {
			return fmt.Errorf("snapshot does not load against %d bins: %w", bins, err)
		}
		fmt.Printf("snapshot loads cleanly: %d bins, pre_calibrated=%v\n", len(snap.CoggingMap), snap.PreCalibrated)
		return nil

	default:
		return fmt.Errorf("unknown cogging subcommand %q (want dump|load)", args[0])
	}
}

// noopMotor and noopEstimator stand in for the CAN-backed ports when
// validating a snapshot offline, where no bus is attached.
type noopMotor struct{}

func (noopMotor) MaxAvailableTorque() float64 { return 0 }

type noopEstimator struct{}

func (noopEstimator) PosEstimateLinear() axis.Optional[float64]   { return axis.None[float64]() }
func (noopEstimator) PosEstimateCircular() axis.Optional[float64] { return axis.None[float64]() }
func (noopEstimator) PosWrap() axis.Optional[float64]             { return axis.None[float64]() }
func (noopEstimator) VelEstimate() axis.Optional[float64]         { return axis.None[float64]() }
func (noopEstimator) PosCPR() axis.Optional[float64]              { return axis.None[float64]() }

func parseLevel(s string) telemetry.Level {
	switch s {
	case "trace":
		return telemetry.Trace
	case "debug":
		return telemetry.Debug
	case "info":
		return telemetry.Info
	case "warn", "warning":
		return telemetry.Warn
	case "error":
		return telemetry.Error
	case "critical":
		return telemetry.Critical
	default:
		return telemetry.Info
	}
}
