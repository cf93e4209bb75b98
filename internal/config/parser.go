package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTargetURL     = "https://bestinslot.xyz/brc2.0/acorns?mode=clob"
	DefaultHistoryFile   = "acorns_data.json"
	DefaultRotatingMax   = 500
	DefaultSeriesMax     = 10000
	DefaultDisplayOffset = "+08:00"
)

// DefaultConfig returns baseline settings used before the file and CLI
// overrides. MaxRecords is left zero so it follows the mode.
func DefaultConfig() Config {
	return Config{
		TargetURL:     DefaultTargetURL,
		HistoryFile:   DefaultHistoryFile,
		Mode:          ModeRotating,
		Interval:      Duration(10 * time.Minute),
		DisplayOffset: DefaultDisplayOffset,
		LogLevel:      "info",
		Fetch: FetchOptions{
			Renderer:          RendererAuto,
			LivenessTimeout:   Duration(30 * time.Second),
			SettleDelay:       Duration(5 * time.Second),
			RetryBackoff:      Duration(2 * time.Second),
			RequestsPerSecond: 0.5,
		},
		Extract: ExtractOptions{
			ContainerTag: "div",
			ClassMarker:  "font-semibold",
			LeafTag:      "span",
			Keyword:      "Holder",
			Threshold:    100,
		},
		UI: UIOptions{Recent: 20},
	}
}

// Load reads the YAML file at path, applies defaults and CLI overrides, and
// validates the result. An empty path yields the defaults.
func Load(path string, overrides CLIOverrides) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyCLIOverrides(&cfg, overrides)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Location returns the fixed zone used for display strings.
func (c *Config) Location() (*time.Location, error) {
	return ParseOffset(c.DisplayOffset)
}

// ParseOffset turns "+08:00", "-0530", "+8" or "UTC" into a fixed zone.
func ParseOffset(value string) (*time.Location, error) {
	v := strings.TrimSpace(value)
	if v == "" || strings.EqualFold(v, "UTC") || v == "Z" {
		return time.UTC, nil
	}
	sign := 1
	switch v[0] {
	case '+':
		v = v[1:]
	case '-':
		sign = -1
		v = v[1:]
	default:
		return nil, fmt.Errorf("invalid display_offset %q: must start with + or -", value)
	}

	hh, mm := v, "0"
	if i := strings.IndexByte(v, ':'); i >= 0 {
		hh, mm = v[:i], v[i+1:]
	} else if len(v) == 4 {
		hh, mm = v[:2], v[2:]
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 14 {
		return nil, fmt.Errorf("invalid display_offset %q", value)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return nil, fmt.Errorf("invalid display_offset %q", value)
	}
	secs := sign * (h*3600 + m*60)
	return time.FixedZone(formatOffset(secs), secs), nil
}

func formatOffset(secs int) string {
	sign := '+'
	if secs < 0 {
		sign = '-'
		secs = -secs
	}
	return fmt.Sprintf("UTC%c%02d:%02d", sign, secs/3600, secs%3600/60)
}

func applyDefaults(cfg *Config) {
	if cfg.MaxRecords == 0 {
		if cfg.Mode == ModeSeries {
			cfg.MaxRecords = DefaultSeriesMax
		} else {
			cfg.MaxRecords = DefaultRotatingMax
		}
	}
	if cfg.Fetch.Renderer == "" {
		cfg.Fetch.Renderer = RendererAuto
	}
	if cfg.UI.Recent <= 0 {
		cfg.UI.Recent = 20
	}
	if isDigits(cfg.Metrics.Listen) {
		cfg.Metrics.Listen = ":" + cfg.Metrics.Listen
	}
}

func validate(cfg *Config) error {
	var errs []error
	if strings.TrimSpace(cfg.TargetURL) == "" {
		errs = append(errs, errors.New("target_url must not be empty"))
	}
	if strings.TrimSpace(cfg.HistoryFile) == "" {
		errs = append(errs, errors.New("history_file must not be empty"))
	}
	switch cfg.Mode {
	case ModeRotating, ModeSeries:
	default:
		errs = append(errs, fmt.Errorf("invalid mode: %q", cfg.Mode))
	}
	if cfg.MaxRecords < 0 {
		errs = append(errs, fmt.Errorf("max_records must be positive, got %d", cfg.MaxRecords))
	}
	if cfg.Interval <= 0 {
		errs = append(errs, errors.New("interval must be positive"))
	}
	switch cfg.Fetch.Renderer {
	case RendererAuto, RendererBrowser, RendererHTTP:
	default:
		errs = append(errs, fmt.Errorf("invalid fetch.renderer: %q", cfg.Fetch.Renderer))
	}
	if cfg.Fetch.LivenessTimeout <= 0 {
		errs = append(errs, errors.New("fetch.liveness_timeout must be positive"))
	}
	if cfg.Fetch.SettleDelay < 0 {
		errs = append(errs, errors.New("fetch.settle_delay must not be negative"))
	}
	if cfg.Fetch.Retries < 0 {
		errs = append(errs, errors.New("fetch.retries must not be negative"))
	}
	if cfg.Extract.Threshold < 0 {
		errs = append(errs, errors.New("extract.threshold must not be negative"))
	}
	if _, err := ParseOffset(cfg.DisplayOffset); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func applyCLIOverrides(cfg *Config, overrides CLIOverrides) {
	if overrides.TargetURL != nil {
		cfg.TargetURL = *overrides.TargetURL
	}
	if overrides.HistoryFile != nil {
		cfg.HistoryFile = *overrides.HistoryFile
	}
	if overrides.Mode != nil {
		cfg.Mode = *overrides.Mode
	}
	if overrides.MaxRecords != nil {
		cfg.MaxRecords = *overrides.MaxRecords
	}
	if overrides.Interval != nil {
		cfg.Interval = Duration(*overrides.Interval)
	}
	if overrides.Renderer != nil {
		cfg.Fetch.Renderer = *overrides.Renderer
	}
	if overrides.MetricsListen != nil {
		cfg.Metrics.Listen = *overrides.MetricsListen
	}
	if overrides.UIDisable != nil {
		cfg.UI.Disable = *overrides.UIDisable
	}
	if overrides.LogLevel != nil {
		cfg.LogLevel = *overrides.LogLevel
	}
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
