package config

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/signalsfoundry/satdecay/core"
	"github.com/signalsfoundry/satdecay/model"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"BaseURL", cfg.SpaceTrack.BaseURL, "https://www.space-track.org"},
		{"ThrottleDelay", cfg.SpaceTrack.ThrottleDelay, 12 * time.Second},
		{"SatcatURL", cfg.Celestrak.SatcatURL, "https://celestrak.org/pub/satcat.csv"},
		{"PlotMode", cfg.Plot.Mode, "distinct"},
		{"CombinedFileName", cfg.Plot.CombinedFileName, "output"},
		{"ShowApoapsis", cfg.Plot.ShowApoapsis, true},
		{"ShowPeriapsis", cfg.Plot.ShowPeriapsis, true},
		{"UseNameInLegend", cfg.Plot.UseNameInLegend, true},
		{"MinAltitude", cfg.MinAltitude, 0.0},
		{"OutputFormat", cfg.Output.Format, "json"},
		{"LogLevel", cfg.Log.Level, "info"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
	if len(cfg.Overrides) != 0 || len(cfg.Designators) != 0 {
		t.Errorf("unexpected overrides=%v designators=%v", cfg.Overrides, cfg.Designators)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SATDECAY_SPACETRACK_LOGIN", "ops@example.org")
	t.Setenv("SATDECAY_SPACETRACK_THROTTLE_DELAY", "3s")
	t.Setenv("SATDECAY_DESIGNATORS", "1998-067A, 2021-035*")
	t.Setenv("SATDECAY_EXCLUDE_CATALOG_NUMBERS", "48275,48276")
	t.Setenv("SATDECAY_OVERRIDES", "7=99, 8=100")
	t.Setenv("SATDECAY_PLOT_MODE", "combined")
	t.Setenv("SATDECAY_MIN_ALTITUDE", "150.5")

	v := viper.New()
	BindEnv(v)
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.SpaceTrack.Login != "ops@example.org" {
		t.Errorf("Login = %q", cfg.SpaceTrack.Login)
	}
	if cfg.SpaceTrack.ThrottleDelay != 3*time.Second {
		t.Errorf("ThrottleDelay = %v", cfg.SpaceTrack.ThrottleDelay)
	}
	if want := []string{"1998-067A", "2021-035*"}; !reflect.DeepEqual(cfg.Designators, want) {
		t.Errorf("Designators = %v, want %v", cfg.Designators, want)
	}
	if want := []int{48275, 48276}; !reflect.DeepEqual(cfg.ExcludeCatalogNumbers, want) {
		t.Errorf("ExcludeCatalogNumbers = %v, want %v", cfg.ExcludeCatalogNumbers, want)
	}
	if want := (model.Overrides{7: 99, 8: 100}); !reflect.DeepEqual(cfg.Overrides, want) {
		t.Errorf("Overrides = %v, want %v", cfg.Overrides, want)
	}
	if cfg.Plot.Mode != "combined" || cfg.MinAltitude != 150.5 {
		t.Errorf("Plot.Mode = %q MinAltitude = %v", cfg.Plot.Mode, cfg.MinAltitude)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	const doc = `
spacetrack:
  login: user
  password: secret
designators:
  - 1998-067A
  - 2021-035*
exclude: [2021-035C]
overrides:
  "123456": 25544
start_date: "2021-01-01"
end_date: "2022-01-01T12:00:00Z"
plot:
  mode: combined
  show_periapsis: false
  combined_file_name: stations.svg
`
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(doc)); err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	opts, err := cfg.PipelineOptions()
	if err != nil {
		t.Fatalf("PipelineOptions: %v", err)
	}
	if opts.Mode != core.PlotCombined || opts.CombinedName != "stations.svg" {
		t.Errorf("mode = %q combined = %q", opts.Mode, opts.CombinedName)
	}
	if !opts.Build.ShowApoapsis || opts.Build.ShowPeriapsis || !opts.Build.UseNameInLegend {
		t.Errorf("build options = %+v", opts.Build)
	}
	if !opts.Start.Equal(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)) ||
		!opts.End.Equal(time.Date(2022, 1, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("bounds = %v .. %v", opts.Start, opts.End)
	}
	if opts.Overrides[123456] != 25544 {
		t.Errorf("overrides = %v", opts.Overrides)
	}
	if !opts.Exclusions.Excludes(model.CatalogRow{Designator: "2021-035C"}) {
		t.Errorf("exclusion not applied")
	}
	if got := cfg.Credentials(); got.Identity != "user" || got.Password != "secret" {
		t.Errorf("credentials = %+v", got)
	}
}

func TestValidate(t *testing.T) {
	base, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"plot mode", func(c *Config) { c.Plot.Mode = "stacked" }, "unknown plot mode"},
		{"format", func(c *Config) { c.Output.Format = "svg" }, "unknown output format"},
		{"throttle", func(c *Config) { c.SpaceTrack.ThrottleDelay = -time.Second }, "throttle delay"},
		{"date", func(c *Config) { c.StartDate = "yesterday" }, "start_date"},
		{"range", func(c *Config) { c.StartDate, c.EndDate = "2022-01-01", "2021-01-01" }, "not after"},
		{"catalog number", func(c *Config) { c.ExcludeCatalogNumbers = []int{0} }, "invalid catalog number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestParseOverrides(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    model.Overrides
		wantErr bool
	}{
		{"nil", nil, model.Overrides{}, false},
		{"yaml map", map[string]any{"7": 99}, model.Overrides{7: 99}, false},
		{"env pairs", "7=99,8:100", model.Overrides{7: 99, 8: 100}, false},
		{"bad id", "x=99", nil, true},
		{"bad target", map[string]any{"7": "ISS"}, nil, true},
		{"missing separator", "799", nil, true},
		{"unsupported", 42, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOverrides(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}
