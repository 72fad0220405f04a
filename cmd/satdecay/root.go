package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/satdecay/core"
	"github.com/signalsfoundry/satdecay/internal/celestrak"
	"github.com/signalsfoundry/satdecay/internal/config"
	"github.com/signalsfoundry/satdecay/internal/logging"
	"github.com/signalsfoundry/satdecay/internal/observability"
	"github.com/signalsfoundry/satdecay/internal/spacetrack"
	"github.com/signalsfoundry/satdecay/kb"
	"github.com/signalsfoundry/satdecay/timectrl"
)

// app carries the viper instance shared by the command tree.
type app struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "satdecay",
		Short:         "Build altitude decay datasets from Space-Track element history",
		Long:          "satdecay resolves international designators to catalog numbers, fetches their gp_history under Space-Track's rate limits and writes apoapsis/periapsis series for charting.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./satdecay.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("satcat-url", celestrak.DefaultSatcatURL, "CelesTrak SATCAT CSV location")
	a.bind(root, "log.level", "log-level")
	a.bind(root, "log.format", "log-format")
	a.bind(root, "celestrak.satcat_url", "satcat-url")

	root.AddCommand(a.newRunCmd(), a.newResolveCmd(), a.newCatalogCmd())
	return root
}

func (a *app) bind(cmd *cobra.Command, key, flag string) {
	f := cmd.PersistentFlags().Lookup(flag)
	if f == nil {
		f = cmd.Flags().Lookup(flag)
	}
	_ = a.v.BindPFlag(key, f)
}

// bindAll binds a subcommand's flags to config keys. It runs from PreRunE
// so that only the executing command's flags are bound when several
// commands share a key.
func (a *app) bindAll(cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		a.bind(cmd, key, flag)
	}
}

func (a *app) initConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.SetConfigName("satdecay")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(home)
		}
	}
	config.BindEnv(a.v)

	if err := a.v.ReadInConfig(); err != nil {
		// A missing default config file is fine; an explicit one must exist.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || a.cfgFile != "" {
			return err
		}
	}
	return nil
}

// env is everything a command needs, built from the loaded configuration.
type env struct {
	cfg        config.Config
	log        logging.Logger
	collector  *observability.PipelineCollector
	remote     *spacetrack.Client
	catalogs   *kb.Loader
	throttle   *core.Throttle
	shutdown   func(context.Context) error
	metricsSrv *http.Server
}

func (a *app) setup(ctx context.Context, stderr io.Writer) (*env, error) {
	cfg, err := config.Load(a.v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: stderr})

	tracingCfg := observability.TracingConfigFromEnv()
	tracingCfg.Writer = stderr
	shutdown, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return nil, err
	}

	collector, err := observability.NewPipelineCollector(prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.SpaceTrack.Timeout}
	remote := spacetrack.New(cfg.Credentials(),
		spacetrack.WithBaseURL(cfg.SpaceTrack.BaseURL),
		spacetrack.WithHTTPClient(httpClient),
		spacetrack.WithMetrics(collector),
		spacetrack.WithLogger(log),
	)
	source := celestrak.New(
		celestrak.WithURL(cfg.Celestrak.SatcatURL),
		celestrak.WithHTTPClient(httpClient),
		celestrak.WithMetrics(collector),
		celestrak.WithLogger(log),
	)

	return &env{
		cfg:        cfg,
		log:        log,
		collector:  collector,
		remote:     remote,
		catalogs:   kb.NewLoader(source),
		throttle:   core.NewThrottle(cfg.SpaceTrack.ThrottleDelay, timectrl.RealClock{}).WithMetrics(collector),
		shutdown:   shutdown,
		metricsSrv: serveMetrics(cfg.MetricsAddr, collector, log),
	}, nil
}

func (e *env) pipeline() *core.Pipeline {
	return core.NewPipeline(e.remote, e.catalogs, e.throttle).WithLogger(e.log).WithMetrics(e.collector)
}

func (e *env) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if e.metricsSrv != nil {
		_ = e.metricsSrv.Shutdown(ctx)
	}
	observability.ShutdownWithTimeout(ctx, e.shutdown, e.log)
}
