package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/telemetry.report/internal/telemetry/fixedpoint"
	"github.com/banshee-data/telemetry.report/internal/telemetry/parse"
	"github.com/banshee-data/telemetry.report/internal/units"
	"github.com/banshee-data/telemetry.report/internal/waveform"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/telemetry.defaults.json"

// TelemetryConfig is the root configuration for capture and comparison.
// Every field is optional; the Get* accessors supply defaults for omitted
// fields so partial files are safe.
type TelemetryConfig struct {
	// Packet layout
	HeaderByte      *int  `json:"header_byte,omitempty"`
	ChannelCount    *int  `json:"channel_count,omitempty"`
	BytesPerChannel *int  `json:"bytes_per_channel,omitempty"`
	BitsPerSample   *uint `json:"bits_per_sample,omitempty"`
	FractionalBits  *uint `json:"fractional_bits,omitempty"`

	// Live capture
	HistoryWindow *int     `json:"history_window,omitempty"`
	PollInterval  *string  `json:"poll_interval,omitempty"` // duration string like "100ms"
	ReadTimeout   *string  `json:"read_timeout,omitempty"`
	BaudRate      *int     `json:"baud_rate,omitempty"`
	Channels      []string `json:"channels,omitempty"`

	// Comparison
	ZeroThreshold          *float64 `json:"zero_threshold,omitempty"`
	ReferenceWindowMax     *int     `json:"reference_window_max,omitempty"`
	ReferenceWindowDivisor *int     `json:"reference_window_divisor,omitempty"`
	TestSamplePeriod       *float64 `json:"test_sample_period,omitempty"`
	SteadyStateDuration    *float64 `json:"steady_state_duration,omitempty"`
	PhaseStep              *float64 `json:"phase_step,omitempty"`
}

// EmptyTelemetryConfig returns a config with every field unset.
func EmptyTelemetryConfig() *TelemetryConfig {
	return &TelemetryConfig{}
}

// LoadTelemetryConfig loads a TelemetryConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadTelemetryConfig(path string) (*TelemetryConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTelemetryConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, or returns an empty config when path is "".
func LoadOrDefault(path string) (*TelemetryConfig, error) {
	if path == "" {
		return EmptyTelemetryConfig(), nil
	}
	return LoadTelemetryConfig(path)
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file cannot
// be loaded, intended for test setup.
func MustLoadDefaultConfig() *TelemetryConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/telemetry/parse/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTelemetryConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TelemetryConfig) Validate() error {
	if c.HeaderByte != nil && (*c.HeaderByte < 0 || *c.HeaderByte > 0xFF) {
		return fmt.Errorf("header_byte must be between 0 and 255, got %d", *c.HeaderByte)
	}
	if err := c.Layout().Validate(); err != nil {
		return err
	}
	if c.HistoryWindow != nil && *c.HistoryWindow < 1 {
		return fmt.Errorf("history_window must be positive, got %d", *c.HistoryWindow)
	}
	for name, v := range map[string]*string{"poll_interval": c.PollInterval, "read_timeout": c.ReadTimeout} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}
	if len(c.Channels) > 0 && len(c.Channels) != c.GetChannelCount() {
		return fmt.Errorf("channels lists %d ids for %d channels", len(c.Channels), c.GetChannelCount())
	}
	if c.ZeroThreshold != nil && *c.ZeroThreshold < 0 {
		return fmt.Errorf("zero_threshold must be non-negative, got %f", *c.ZeroThreshold)
	}
	if c.ReferenceWindowMax != nil && *c.ReferenceWindowMax < 1 {
		return fmt.Errorf("reference_window_max must be positive, got %d", *c.ReferenceWindowMax)
	}
	if c.ReferenceWindowDivisor != nil && *c.ReferenceWindowDivisor < 1 {
		return fmt.Errorf("reference_window_divisor must be positive, got %d", *c.ReferenceWindowDivisor)
	}
	for name, v := range map[string]*float64{
		"test_sample_period":    c.TestSamplePeriod,
		"steady_state_duration": c.SteadyStateDuration,
		"phase_step":            c.PhaseStep,
	} {
		if v != nil && !(*v > 0) {
			return fmt.Errorf("%s must be positive, got %g", name, *v)
		}
	}
	return nil
}

// Layout assembles the packet layout from the layout fields.
func (c *TelemetryConfig) Layout() parse.Layout {
	return parse.Layout{
		HeaderByte:      byte(c.GetHeaderByte()),
		Channels:        c.GetChannelCount(),
		BytesPerChannel: c.GetBytesPerChannel(),
		Format: fixedpoint.Format{
			Bits:     c.GetBitsPerSample(),
			FracBits: c.GetFractionalBits(),
		},
	}
}

// ReferenceOptions assembles the zero-crossing search parameters.
func (c *TelemetryConfig) ReferenceOptions() waveform.ReferenceOptions {
	return waveform.ReferenceOptions{
		Threshold:     c.GetZeroThreshold(),
		WindowMax:     c.GetReferenceWindowMax(),
		WindowDivisor: c.GetReferenceWindowDivisor(),
	}
}

// GetHeaderByte returns the header_byte value or the default.
func (c *TelemetryConfig) GetHeaderByte() int {
	if c.HeaderByte == nil {
		return int(parse.DefaultHeaderByte)
	}
	return *c.HeaderByte
}

// GetChannelCount returns the channel_count value or the default.
func (c *TelemetryConfig) GetChannelCount() int {
	if c.ChannelCount == nil {
		return parse.DefaultChannels
	}
	return *c.ChannelCount
}

// GetBytesPerChannel returns the bytes_per_channel value or the default.
func (c *TelemetryConfig) GetBytesPerChannel() int {
	if c.BytesPerChannel == nil {
		return parse.DefaultBytesPerChannel
	}
	return *c.BytesPerChannel
}

// GetBitsPerSample returns the bits_per_sample value or the default.
func (c *TelemetryConfig) GetBitsPerSample() uint {
	if c.BitsPerSample == nil {
		return fixedpoint.Q14_28.Bits
	}
	return *c.BitsPerSample
}

// GetFractionalBits returns the fractional_bits value or the default.
func (c *TelemetryConfig) GetFractionalBits() uint {
	if c.FractionalBits == nil {
		return fixedpoint.Q14_28.FracBits
	}
	return *c.FractionalBits
}

// GetHistoryWindow returns the history_window value or the default.
func (c *TelemetryConfig) GetHistoryWindow() int {
	if c.HistoryWindow == nil {
		return 1000
	}
	return *c.HistoryWindow
}

// GetPollInterval parses and returns the PollInterval as a time.Duration.
func (c *TelemetryConfig) GetPollInterval() time.Duration {
	return parseDurationOr(c.PollInterval, 100*time.Millisecond)
}

// GetReadTimeout parses and returns the ReadTimeout as a time.Duration.
func (c *TelemetryConfig) GetReadTimeout() time.Duration {
	return parseDurationOr(c.ReadTimeout, 100*time.Millisecond)
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetBaudRate returns the baud_rate value or the default.
func (c *TelemetryConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return 3000000
	}
	return *c.BaudRate
}

// GetChannels returns the ordered live channel ids. When unset, the
// converter's five states are used for a five-channel layout and ids are
// generated as ch0..chN-1 otherwise.
func (c *TelemetryConfig) GetChannels() []string {
	if len(c.Channels) > 0 {
		return append([]string(nil), c.Channels...)
	}
	if c.GetChannelCount() == len(units.Channels) {
		return units.LiveChannelIDs()
	}
	ids := make([]string, c.GetChannelCount())
	for i := range ids {
		ids[i] = fmt.Sprintf("ch%d", i)
	}
	return ids
}

// GetZeroThreshold returns the zero_threshold value or the default.
func (c *TelemetryConfig) GetZeroThreshold() float64 {
	if c.ZeroThreshold == nil {
		return waveform.DefaultZeroThreshold
	}
	return *c.ZeroThreshold
}

// GetReferenceWindowMax returns the reference_window_max value or the default.
func (c *TelemetryConfig) GetReferenceWindowMax() int {
	if c.ReferenceWindowMax == nil {
		return waveform.DefaultWindowMax
	}
	return *c.ReferenceWindowMax
}

// GetReferenceWindowDivisor returns the reference_window_divisor value or the default.
func (c *TelemetryConfig) GetReferenceWindowDivisor() int {
	if c.ReferenceWindowDivisor == nil {
		return waveform.DefaultWindowDivisor
	}
	return *c.ReferenceWindowDivisor
}

// GetTestSamplePeriod returns the device sample period in seconds.
func (c *TelemetryConfig) GetTestSamplePeriod() float64 {
	if c.TestSamplePeriod == nil {
		return 25e-6
	}
	return *c.TestSamplePeriod
}

// GetSteadyStateDuration returns the reference tail kept for comparison, in seconds.
func (c *TelemetryConfig) GetSteadyStateDuration() float64 {
	if c.SteadyStateDuration == nil {
		return 0.08
	}
	return *c.SteadyStateDuration
}

// GetPhaseStep returns the override quantization step in seconds.
func (c *TelemetryConfig) GetPhaseStep() float64 {
	if c.PhaseStep == nil {
		return 1e-5
	}
	return *c.PhaseStep
}
