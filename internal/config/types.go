package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects the history log policy.
type Mode string

const (
	// ModeRotating keeps an annotated, most-recent-first log.
	ModeRotating Mode = "rotating"
	// ModeSeries keeps a chronological series and skips failed samples.
	ModeSeries Mode = "series"
)

// Renderer names accepted under fetch.renderer.
const (
	RendererAuto    = "auto"
	RendererBrowser = "browser"
	RendererHTTP    = "http"
)

// Duration is a time.Duration that reads "10m"-style strings from YAML.
// Bare integers are seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var n int64
	if node.ShortTag() == "!!int" {
		if err := node.Decode(&n); err != nil {
			return err
		}
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// FetchOptions configure the page renderer.
type FetchOptions struct {
	Renderer          string   `yaml:"renderer"`
	LivenessTimeout   Duration `yaml:"liveness_timeout"`
	SettleDelay       Duration `yaml:"settle_delay"`
	UserAgent         string   `yaml:"user_agent"`
	Retries           int      `yaml:"retries"`
	RetryBackoff      Duration `yaml:"retry_backoff"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	BrowserPath       string   `yaml:"browser_path"`
}

// ExtractOptions configure candidate matching and selection.
type ExtractOptions struct {
	ContainerTag string `yaml:"container_tag"`
	ClassMarker  string `yaml:"class_marker"`
	LeafTag      string `yaml:"leaf_tag"`
	Keyword      string `yaml:"keyword"`
	Threshold    int64  `yaml:"threshold"`
}

type MetricsOptions struct {
	Listen string `yaml:"listen"`
}

type UIOptions struct {
	Disable bool `yaml:"disable"`
	Recent  int  `yaml:"recent"`
}

type ArchiveOptions struct {
	Path string `yaml:"path"`
}

// Config is the parsed configuration file with defaults and CLI overrides
// applied.
type Config struct {
	TargetURL     string         `yaml:"target_url"`
	HistoryFile   string         `yaml:"history_file"`
	Mode          Mode           `yaml:"mode"`
	MaxRecords    int            `yaml:"max_records"`
	Interval      Duration       `yaml:"interval"`
	DisplayOffset string         `yaml:"display_offset"`
	LogLevel      string         `yaml:"log_level"`
	Fetch         FetchOptions   `yaml:"fetch"`
	Extract       ExtractOptions `yaml:"extract"`
	Metrics       MetricsOptions `yaml:"metrics"`
	UI            UIOptions      `yaml:"ui"`
	Archive       ArchiveOptions `yaml:"archive"`
}

// CLIOverrides holds optional CLI values that override config file values.
type CLIOverrides struct {
	TargetURL     *string
	HistoryFile   *string
	Mode          *Mode
	MaxRecords    *int
	Interval      *time.Duration
	Renderer      *string
	MetricsListen *string
	UIDisable     *bool
	LogLevel      *string
}
