// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the capture, analysis and motion pipeline.
const (
	// Capture defaults.
	DefaultChannels        = 1 // Mono capture
	DefaultDeviceID        = MinDeviceID
	DefaultFramesPerBuffer = 512 // FFT size, yields 256 spectrum bins
	DefaultLowLatency      = false
	DefaultSampleRate      = 44100
	DefaultWindow          = "Hann"

	// Analysis defaults. The beat detector compares the current low-band
	// energy against a short rolling average and refuses to re-trigger
	// inside the debounce interval.
	DefaultBeatDebounce    = 250 * time.Millisecond
	DefaultBeatEnergyRatio = 1.5
	DefaultBeatHistorySize = 8

	// Visual defaults. Slider bounds match the UI controls.
	DefaultVertexCount   = 24
	DefaultCanvasWidth   = 800
	DefaultCanvasHeight  = 600
	DefaultSeed          = 1
	DefaultFlowSpeed     = 1.0
	DefaultColorSpeed    = 0.5
	DefaultWaveIntensity = 0.8
	DefaultPatternSize   = 1.0

	MinFlowSpeed     = 0.1
	MaxFlowSpeed     = 2.0
	MinColorSpeed    = 0.1
	MaxColorSpeed    = 2.0
	MinWaveIntensity = 0.0
	MaxWaveIntensity = 1.5
	MinPatternSize   = 0.5
	MaxPatternSize   = 2.0

	// Server defaults.
	DefaultListenAddr    = ":8080"
	DefaultFrameInterval = 16 * time.Millisecond // ~60Hz display cadence

	// Hardware and processing limits.
	MinDeviceID     = -1     // -1 selects the system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2)
	MaxVertexCount  = 64     // Edge derivation is O(V^2); hard cap
)
