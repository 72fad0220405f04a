package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/signalsfoundry/satdecay/core"
	"github.com/signalsfoundry/satdecay/internal/celestrak"
	"github.com/signalsfoundry/satdecay/internal/spacetrack"
	"github.com/signalsfoundry/satdecay/model"
)

// EnvPrefix is prepended to every environment variable, e.g.
// SATDECAY_SPACETRACK_LOGIN.
const EnvPrefix = "SATDECAY"

// SpaceTrackConfig holds the remote catalog service settings.
type SpaceTrackConfig struct {
	Login         string        `mapstructure:"login"`
	Password      string        `mapstructure:"password"`
	BaseURL       string        `mapstructure:"base_url"`
	ThrottleDelay time.Duration `mapstructure:"throttle_delay"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// CelestrakConfig holds the catalog mapping source settings.
type CelestrakConfig struct {
	SatcatURL string `mapstructure:"satcat_url"`
}

// PlotConfig selects the chart layout and which traces are drawn.
type PlotConfig struct {
	Mode             string `mapstructure:"mode"`
	CombinedFileName string `mapstructure:"combined_file_name"`
	ShowApoapsis     bool   `mapstructure:"show_apoapsis"`
	ShowPeriapsis    bool   `mapstructure:"show_periapsis"`
	UseNameInLegend  bool   `mapstructure:"use_name_in_legend"`
}

// OutputConfig controls where charts are written.
type OutputConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"`
}

// LogConfig mirrors the LOG_LEVEL/LOG_FORMAT environment knobs.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config holds all runtime configuration for a run.
// Values are populated from satdecay.yaml, SATDECAY_* env vars, and CLI flags.
type Config struct {
	SpaceTrack            SpaceTrackConfig `mapstructure:"spacetrack"`
	Celestrak             CelestrakConfig  `mapstructure:"celestrak"`
	Designators           []string         `mapstructure:"designators"`
	CatalogNumbers        []int            `mapstructure:"catalog_numbers"`
	Exclude               []string         `mapstructure:"exclude"`
	ExcludeCatalogNumbers []int            `mapstructure:"exclude_catalog_numbers"`
	StartDate             string           `mapstructure:"start_date"`
	EndDate               string           `mapstructure:"end_date"`
	MinAltitude           float64          `mapstructure:"min_altitude"`
	Plot                  PlotConfig       `mapstructure:"plot"`
	Output                OutputConfig     `mapstructure:"output"`
	MetricsAddr           string           `mapstructure:"metrics_addr"`
	Log                   LogConfig        `mapstructure:"log"`

	// Overrides maps record ids to the catalog number they are drawn under.
	// It accepts a YAML mapping or "id=number,id=number" from the
	// environment, so it is decoded separately.
	Overrides model.Overrides `mapstructure:"-"`
}

// SetDefaults registers every key with its default so that environment
// variables are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("spacetrack.login", "")
	v.SetDefault("spacetrack.password", "")
	v.SetDefault("spacetrack.base_url", spacetrack.DefaultBaseURL)
	v.SetDefault("spacetrack.throttle_delay", core.DefaultThrottleDelay)
	v.SetDefault("spacetrack.timeout", 60*time.Second)
	v.SetDefault("celestrak.satcat_url", celestrak.DefaultSatcatURL)
	v.SetDefault("designators", []string{})
	v.SetDefault("catalog_numbers", []int{})
	v.SetDefault("exclude", []string{})
	v.SetDefault("exclude_catalog_numbers", []int{})
	v.SetDefault("overrides", map[string]any{})
	v.SetDefault("start_date", "")
	v.SetDefault("end_date", "")
	v.SetDefault("min_altitude", 0.0)
	v.SetDefault("plot.mode", string(core.PlotDistinct))
	v.SetDefault("plot.combined_file_name", core.DefaultCombinedName)
	v.SetDefault("plot.show_apoapsis", true)
	v.SetDefault("plot.show_periapsis", true)
	v.SetDefault("plot.use_name_in_legend", true)
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.format", "json")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// BindEnv wires SATDECAY_* variables, with '.' in keys mapped to '_'.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from v, applying built-in defaults for any
// values not set by config file, environment, or flags. A nil v uses the
// global viper instance.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	overrides, err := ParseOverrides(v.Get("overrides"))
	if err != nil {
		return Config{}, err
	}
	cfg.Overrides = overrides
	cfg.Designators = splitList(cfg.Designators)
	cfg.Exclude = splitList(cfg.Exclude)
	return cfg, nil
}

// Validate checks the values that would otherwise fail mid-run.
func (c Config) Validate() error {
	var errs []error
	if _, err := core.ParsePlotMode(c.Plot.Mode); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Output.Format) {
	case "json", "yaml", "yml":
	default:
		errs = append(errs, fmt.Errorf("unknown output format %q", c.Output.Format))
	}
	if c.SpaceTrack.ThrottleDelay < 0 {
		errs = append(errs, fmt.Errorf("throttle delay must not be negative, got %s", c.SpaceTrack.ThrottleDelay))
	}
	start, err := ParseDate(c.StartDate)
	if err != nil {
		errs = append(errs, fmt.Errorf("start_date: %w", err))
	}
	end, err := ParseDate(c.EndDate)
	if err != nil {
		errs = append(errs, fmt.Errorf("end_date: %w", err))
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		errs = append(errs, fmt.Errorf("end_date %s is not after start_date %s", c.EndDate, c.StartDate))
	}
	for _, n := range append(append([]int{}, c.CatalogNumbers...), c.ExcludeCatalogNumbers...) {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("invalid catalog number %d", n))
		}
	}
	return errors.Join(errs...)
}

// Credentials returns the Space-Track credential pair.
func (c Config) Credentials() spacetrack.Credentials {
	return spacetrack.Credentials{Identity: c.SpaceTrack.Login, Password: c.SpaceTrack.Password}
}

// PipelineOptions converts the configuration into a run request. Validate
// should be called first.
func (c Config) PipelineOptions() (core.Options, error) {
	mode, err := core.ParsePlotMode(c.Plot.Mode)
	if err != nil {
		return core.Options{}, err
	}
	start, err := ParseDate(c.StartDate)
	if err != nil {
		return core.Options{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := ParseDate(c.EndDate)
	if err != nil {
		return core.Options{}, fmt.Errorf("end_date: %w", err)
	}
	return core.Options{
		Tokens:         c.Designators,
		CatalogNumbers: catalogNumbers(c.CatalogNumbers),
		Exclusions:     model.NewExclusions(c.Exclude, catalogNumbers(c.ExcludeCatalogNumbers)),
		Overrides:      c.Overrides,
		Start:          start,
		End:            end,
		MinAltitudeKm:  c.MinAltitude,
		Mode:           mode,
		CombinedName:   c.Plot.CombinedFileName,
		Build: core.BuildOptions{
			ShowApoapsis:    c.Plot.ShowApoapsis,
			ShowPeriapsis:   c.Plot.ShowPeriapsis,
			UseNameInLegend: c.Plot.UseNameInLegend,
		},
	}, nil
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses an optional date bound. Blank input yields the zero
// time; values without a zone are UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// ParseOverrides accepts a mapping of record id to catalog number, either
// decoded from YAML or as "id=number" pairs separated by commas.
func ParseOverrides(raw any) (model.Overrides, error) {
	out := make(model.Overrides)
	add := func(k, v string) error {
		id, err := strconv.ParseInt(strings.TrimSpace(k), 10, 64)
		if err != nil {
			return fmt.Errorf("override record id %q: %w", k, err)
		}
		n, ok, err := model.ParseCatalogNumber(v)
		if err != nil || !ok || n <= 0 {
			return fmt.Errorf("override target %q for record %d is not a catalog number", v, id)
		}
		out[model.RecordID(id)] = n
		return nil
	}

	switch m := raw.(type) {
	case nil:
	case map[string]any:
		for k, v := range m {
			if err := add(k, fmt.Sprint(v)); err != nil {
				return nil, err
			}
		}
	case map[any]any:
		for k, v := range m {
			if err := add(fmt.Sprint(k), fmt.Sprint(v)); err != nil {
				return nil, err
			}
		}
	case map[string]string:
		for k, v := range m {
			if err := add(k, v); err != nil {
				return nil, err
			}
		}
	case string:
		for _, pair := range strings.Split(m, ",") {
			if strings.TrimSpace(pair) == "" {
				continue
			}
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				k, v, ok = strings.Cut(pair, ":")
			}
			if !ok {
				return nil, fmt.Errorf("override %q: want id=number", pair)
			}
			if err := add(k, v); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("overrides: unsupported value of type %T", raw)
	}
	return out, nil
}

// splitList flattens comma-separated entries and drops blanks.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func catalogNumbers(in []int) []model.CatalogNumber {
	out := make([]model.CatalogNumber, 0, len(in))
	for _, n := range in {
		out = append(out, model.CatalogNumber(n))
	}
	return out
}
