// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug mode (verbose logging).
	LogLevel  string          `yaml:"log_level"` // Logging level ("debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Capture and spectrum settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Feature extraction settings.
	Visual    VisualConfig    `yaml:"visual"`    // Vertex field and slider settings.
	Recording RecordingConfig `yaml:"recording"` // Input recording settings.
	Server    ServerConfig    `yaml:"server"`    // WebSocket/UDP output settings.
}

// AudioConfig holds settings related to microphone capture and the spectrum stage.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per buffer, doubles as the FFT size.
	InputChannels   int     `yaml:"input_channels"`    // Captured channels (1=mono, 2=stereo).
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from the device.
	Window          string  `yaml:"window"`            // FFT window function name (e.g., "Hann").
}

// AnalysisConfig holds the beat detector tuning knobs. The values are
// heuristic, tuned for visual effect rather than DSP correctness.
type AnalysisConfig struct {
	BeatDebounce    time.Duration `yaml:"beat_debounce"`     // Minimum time between reported beats.
	BeatEnergyRatio float64       `yaml:"beat_energy_ratio"` // Spike ratio over the rolling average.
	BeatHistorySize int           `yaml:"beat_history_size"` // Bounded energy history length.
}

// VisualConfig holds the vertex field layout and the user-adjustable motion
// parameters. Slider values outside their bounds are clamped at runtime.
type VisualConfig struct {
	VertexCount   int     `yaml:"vertex_count"`   // Animated vertices (edge pass is O(V^2)).
	CanvasWidth   float64 `yaml:"canvas_width"`   // Logical canvas width.
	CanvasHeight  float64 `yaml:"canvas_height"`  // Logical canvas height.
	Seed          int64   `yaml:"seed"`           // Seed for the per-vertex random motion traits.
	FlowSpeed     float64 `yaml:"flow_speed"`     // 0.1 - 2.0
	ColorSpeed    float64 `yaml:"color_speed"`    // 0.1 - 2.0
	WaveIntensity float64 `yaml:"wave_intensity"` // 0.0 - 1.5
	PatternSize   float64 `yaml:"pattern_size"`   // 0.5 - 2.0
}

// RecordingConfig holds settings related to recording the captured input.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record the input stream to a WAV file.
	OutputDir string `yaml:"output_dir"` // Directory to save recordings.
	Format    string `yaml:"format"`     // File format ("wav" only for now).
}

// ServerConfig holds settings for publishing scene frames and metrics.
type ServerConfig struct {
	ListenAddr       string        `yaml:"listen_addr"`        // HTTP/WebSocket listen address.
	FrameInterval    time.Duration `yaml:"frame_interval"`     // Display tick interval.
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Also publish metrics over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address for UDP packets.
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
}

// Load reads configuration from a YAML file at path. If path is empty, it
// searches default locations ("config.yaml"). If no file is found, built-in
// defaults are used. Environment overrides are applied after loading, and the
// final configuration is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{"config.yaml"}
		found := false
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				found = true
				break
			}
		}
		if !found {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment overrides win over the file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns a Config populated with the package defaults.
func Default() *Config {
	return &Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultChannels,
			LowLatency:      DefaultLowLatency,
			Window:          DefaultWindow,
		},
		Analysis: AnalysisConfig{
			BeatDebounce:    DefaultBeatDebounce,
			BeatEnergyRatio: DefaultBeatEnergyRatio,
			BeatHistorySize: DefaultBeatHistorySize,
		},
		Visual: VisualConfig{
			VertexCount:   DefaultVertexCount,
			CanvasWidth:   DefaultCanvasWidth,
			CanvasHeight:  DefaultCanvasHeight,
			Seed:          DefaultSeed,
			FlowSpeed:     DefaultFlowSpeed,
			ColorSpeed:    DefaultColorSpeed,
			WaveIntensity: DefaultWaveIntensity,
			PatternSize:   DefaultPatternSize,
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: "./recordings",
			Format:    "wav",
		},
		Server: ServerConfig{
			ListenAddr:       DefaultListenAddr,
			FrameInterval:    DefaultFrameInterval,
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  33 * time.Millisecond, // ~30Hz
		},
	}
}

// Validate checks the configuration for values the pipeline cannot work with.
func (c *Config) Validate() error {
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %.0f outside supported range [%d, %d]",
			c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer must be in (0, %d], got %d",
			MaxBufferFrames, c.Audio.FramesPerBuffer)
	}
	if c.Audio.FramesPerBuffer&(c.Audio.FramesPerBuffer-1) != 0 {
		return fmt.Errorf("audio.frames_per_buffer must be a power of 2, got %d",
			c.Audio.FramesPerBuffer)
	}
	if c.Audio.InputChannels < 1 || c.Audio.InputChannels > 2 {
		return fmt.Errorf("audio.input_channels must be 1 or 2, got %d", c.Audio.InputChannels)
	}
	if c.Analysis.BeatHistorySize <= 0 {
		return fmt.Errorf("analysis.beat_history_size must be positive, got %d",
			c.Analysis.BeatHistorySize)
	}
	if c.Analysis.BeatEnergyRatio <= 1.0 {
		return fmt.Errorf("analysis.beat_energy_ratio must be > 1.0, got %g",
			c.Analysis.BeatEnergyRatio)
	}
	if c.Visual.VertexCount <= 0 || c.Visual.VertexCount > MaxVertexCount {
		return fmt.Errorf("visual.vertex_count must be in (0, %d], got %d",
			MaxVertexCount, c.Visual.VertexCount)
	}
	if c.Visual.CanvasWidth <= 0 || c.Visual.CanvasHeight <= 0 {
		return fmt.Errorf("visual canvas dimensions must be positive, got %gx%g",
			c.Visual.CanvasWidth, c.Visual.CanvasHeight)
	}
	if c.Server.FrameInterval <= 0 {
		return fmt.Errorf("server.frame_interval must be positive, got %s",
			c.Server.FrameInterval)
	}
	if c.Server.UDPEnabled {
		if c.Server.UDPTargetAddress == "" {
			return fmt.Errorf("server.udp_target_address must be set when UDP is enabled")
		}
		if c.Server.UDPSendInterval <= 0 {
			return fmt.Errorf("server.udp_send_interval must be positive when UDP is enabled")
		}
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	// VIZ_DEBUG
	if val, ok := os.LookupEnv("VIZ_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
		}
	}
	// VIZ_LISTEN_ADDR
	if val, ok := os.LookupEnv("VIZ_LISTEN_ADDR"); ok {
		c.Server.ListenAddr = val
	}
	// VIZ_UDP_ENABLED
	if val, ok := os.LookupEnv("VIZ_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Server.UDPEnabled = bVal
		}
	}
	// VIZ_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("VIZ_UDP_TARGET_ADDRESS"); ok {
		c.Server.UDPTargetAddress = val
	}
	// VIZ_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("VIZ_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Server.UDPSendInterval = dur
		}
	}
}
