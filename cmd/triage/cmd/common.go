package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/triage/internal/config"
	"github.com/hugo-lorenzo-mato/triage/internal/debugger"
	"github.com/hugo-lorenzo-mato/triage/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/triage/internal/logging"
	"github.com/hugo-lorenzo-mato/triage/internal/triage"
)

// appDeps holds everything a command needs to run checks through the
// configured engine.
type appDeps struct {
	Config   *config.Config
	Loader   *config.Loader
	Logger   *logging.Logger
	Sink     *logging.Sink
	Dumps    *diagnostics.CrashDumpWriter
	Monitor  *diagnostics.ResourceMonitor
	Registry *prometheus.Registry
	Metrics  *triage.Metrics
	Launcher *debugger.Launcher
	Engine   *triage.Engine
}

// loadConfig loads and validates configuration using the global viper
// instance, which carries the CLI flag bindings.
func loadConfig() (*config.Config, *config.Loader, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, loader, nil
}

// newApp wires the engine from configuration. console receives full
// reports. Callers must Close the result.
func newApp(ctx context.Context, console io.Writer) (*appDeps, error) {
	cfg, loader, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})

	sink, err := logging.OpenSink(cfg.Log.File)
	if err != nil {
		return nil, err
	}

	a := &appDeps{
		Config:   cfg,
		Loader:   loader,
		Logger:   logger,
		Sink:     sink,
		Registry: prometheus.NewRegistry(),
	}

	if cfg.Monitor.Enabled {
		interval, err := time.ParseDuration(cfg.Monitor.Interval)
		if err != nil {
			sink.Shutdown()
			return nil, fmt.Errorf("parsing monitor interval: %w", err)
		}
		a.Monitor = diagnostics.NewResourceMonitor(diagnostics.MonitorOptions{
			Interval:    interval,
			HistorySize: cfg.Monitor.HistorySize,
			Logger:      logger.WithComponent("monitor").Logger,
		})
		a.Monitor.Start(ctx)
	}

	var dumps triage.DumpWriter
	if cfg.CrashDump.Enabled {
		a.Dumps = diagnostics.NewCrashDumpWriter(diagnostics.CrashDumpOptions{
			Dir:           cfg.CrashDump.Dir,
			MaxFiles:      cfg.CrashDump.MaxFiles,
			IncludeStacks: true,
			IncludeEnv:    cfg.CrashDump.IncludeEnv,
			IncludeSystem: cfg.CrashDump.IncludeSystem,
			Logger:        logger.WithComponent("crashdump").Logger,
			Monitor:       a.Monitor,
		})
		wd, _ := os.Getwd()
		a.Dumps.SetInvocation(&diagnostics.Invocation{
			Path:    os.Args[0],
			Args:    os.Args[1:],
			WorkDir: wd,
		})
		dumps = a.Dumps
	}

	ignore := triage.NewIgnoreRegistry()
	if cfg.Checks.IgnoreFile != "" {
		n, err := ignore.LoadFile(cfg.Checks.IgnoreFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		logger.Debug("loaded ignore list", "file", cfg.Checks.IgnoreFile, "entries", n)
	}

	a.Metrics, err = triage.NewMetrics(a.Registry)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	flags := loader.FlagSource()
	settings := triage.NewSettings(flags)
	a.Launcher = debugger.New(settings.DebuggerCommand, logger)

	deps := triage.Deps{
		Flags:    flags,
		Settings: settings,
		Sink:     sink,
		Console:  console,
		Platform: triage.NewProcessPlatform(dumps),
		Ignore:   ignore,
		Launcher: a.Launcher,
		Metrics:  a.Metrics,
		OnReport: a.onReport,
	}
	a.Engine = triage.NewEngine(deps)
	triage.SetDefault(deps)

	return a, nil
}

func (a *appDeps) onReport(r *triage.Report) {
	if a.Monitor != nil {
		a.Monitor.RecordFailedCheck()
	}
	a.Logger.Debug("check failed",
		logging.CategoryKey, logging.CategoryAssert,
		"file", r.File,
		"line", r.Line,
		"degraded", r.Degraded,
		"constrained", r.Constrained,
	)
}

// Close stops the monitor and shuts the sink down.
func (a *appDeps) Close() {
	if a.Monitor != nil {
		a.Monitor.Stop()
	}
	if a.Sink != nil {
		a.Sink.Shutdown()
	}
}

// writeMetrics prints every counter sample in the registry.
func writeMetrics(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := ""
			for i, lp := range m.GetLabel() {
				if i > 0 {
					labels += ","
				}
				labels += fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue())
			}
			if labels != "" {
				labels = "{" + labels + "}"
			}
			fmt.Fprintf(w, "%s%s %g\n", mf.GetName(), labels, m.GetCounter().GetValue())
		}
	}
	return nil
}
