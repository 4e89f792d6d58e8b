// SPDX-License-Identifier: MIT
/*
Package audio implements the microphone capture engine feeding the
visualization:
- Capture via PortAudio with pre-allocated buffers
- Branchless noise gate ahead of analysis
- Spectrum + feature extraction inside the capture callback
- Optional WAV recording with atomic state management

Thread safety: the capture callback runs on PortAudio's thread. It writes
only into pre-allocated engine buffers, publishes results through the
sink/transport interfaces (which are thread-safe) and uses an atomic flag
for the recording state.
*/
package audio

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"viz/internal/analysis"
	"viz/internal/config"
	"viz/internal/log"
	"viz/internal/transport"
)

// Sink receives the visual parameters derived from each analyzed buffer.
// Implemented by the scene animator.
type Sink interface {
	ApplyVisual(analysis.VisualParams)
}

// metricsMessage is the analysis result broadcast to viewer clients.
type metricsMessage struct {
	Type    string                `json:"type"` // Always "metrics".
	Metrics analysis.Metrics      `json:"metrics"`
	Params  analysis.VisualParams `json:"params"`
}

// Engine owns the capture stream and the per-buffer analysis chain.
type Engine struct {
	config *config.Config

	// Audio input handling. streamMu guards the stream pointer: toggles
	// arrive from client control goroutines while Close runs at shutdown.
	inputBuffer  []int32
	monoBuffer   []int32
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	streamMu     sync.Mutex
	inputStream  *portaudio.Stream

	// Analysis chain.
	spectrum *analysis.Spectrum
	snapshot []byte
	detector *analysis.BeatDetector

	// Downstream consumers, set before the stream starts.
	sink      Sink
	transport transport.Transport

	// Noise gate for signal conditioning.
	gateEnabled   bool
	gateThreshold int32 // Absolute amplitude threshold (0-2147483647)

	// Recording state and buffers.
	isRecording int32 // Atomic flag for thread-safe state
	outputPath  string
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer

	// Latest extraction result, for the UDP publisher.
	latestMu      sync.Mutex
	latestMetrics analysis.Metrics
	latestParams  analysis.VisualParams
	hasMetrics    bool
}

// NewEngine creates a capture engine from the configuration. PortAudio
// must already be initialized.
func NewEngine(cfg *config.Config) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}

	windowType, err := analysis.ParseWindowFunc(cfg.Audio.Window)
	if err != nil {
		return nil, err
	}
	spectrum, err := analysis.NewSpectrum(cfg.Audio.FramesPerBuffer, cfg.Audio.SampleRate, windowType)
	if err != nil {
		return nil, err
	}
	if spectrum.Bins() < analysis.SnapshotBins {
		return nil, fmt.Errorf("frames_per_buffer %d yields %d bins, need at least %d for analysis",
			cfg.Audio.FramesPerBuffer, spectrum.Bins(), analysis.SnapshotBins)
	}

	engine := &Engine{
		config:      cfg,
		inputBuffer: make([]int32, cfg.Audio.FramesPerBuffer*cfg.Audio.InputChannels),
		monoBuffer:  make([]int32, cfg.Audio.FramesPerBuffer),
		inputDevice: inputDevice,
		spectrum:    spectrum,
		snapshot:    make([]byte, spectrum.Bins()),
		detector: analysis.NewBeatDetector(
			cfg.Analysis.BeatDebounce,
			cfg.Analysis.BeatEnergyRatio,
			cfg.Analysis.BeatHistorySize,
		),
		gateEnabled:   true,
		gateThreshold: 2147483647 / 1000, // ~0.1% of full scale
	}

	if cfg.Audio.LowLatency {
		engine.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		engine.inputLatency = inputDevice.DefaultHighInputLatency
	}

	return engine, nil
}

// SetSink installs the consumer of derived visual parameters.
// Must be called before StartListening.
func (e *Engine) SetSink(s Sink) {
	e.sink = s
}

// SetTransport installs the transport metrics are broadcast on.
// Must be called before StartListening.
func (e *Engine) SetTransport(t transport.Transport) {
	e.transport = t
}

// StartListening opens and starts the capture stream. On failure the
// engine is left stopped and the error describes what the device refused.
func (e *Engine) StartListening() error {
	e.streamMu.Lock()
	defer e.streamMu.Unlock()

	if e.inputStream != nil {
		return nil // Already listening.
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.config.Audio.InputChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0,
			Device:   nil,
		},
		FramesPerBuffer: e.config.Audio.FramesPerBuffer,
		SampleRate:      e.config.Audio.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start capture stream: %w", err)
	}
	e.inputStream = stream

	log.Infof("Audio: Listening on %q (%.0f Hz, %d frames/buffer)",
		e.inputDevice.Name, e.config.Audio.SampleRate, e.config.Audio.FramesPerBuffer)
	return nil
}

// StopListening stops and closes the capture stream. Idempotent.
func (e *Engine) StopListening() error {
	e.streamMu.Lock()
	defer e.streamMu.Unlock()

	if e.inputStream == nil {
		return nil
	}

	if err := e.inputStream.Stop(); err != nil {
		return err
	}
	if err := e.inputStream.Close(); err != nil {
		return err
	}
	e.inputStream = nil

	log.Infof("Audio: Stopped listening")
	return nil
}

// processInputStream is the capture callback.
// Performance critical:
// - Runs on a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
func (e *Engine) processInputStream(in []int32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	copy(e.inputBuffer, in)
	e.processBuffer(e.inputBuffer)

	if e.recording() && e.wavEncoder != nil {
		e.writeRecording(e.inputBuffer)
	}
}

// processBuffer runs the gate and, if it opens, the analysis chain.
func (e *Engine) processBuffer(buffer []int32) {
	// Branchless max-amplitude scan for the noise gate.
	open := !e.gateEnabled
	if e.gateEnabled {
		var maxAmplitude int32
		for i := range buffer {
			sample := buffer[i]
			mask := sample >> 31
			amplitude := (sample ^ mask) - mask
			diff := amplitude - maxAmplitude
			maxAmplitude += (diff & (diff >> 31)) ^ diff
		}
		open = maxAmplitude > e.gateThreshold
	}
	if !open {
		return
	}

	// Fold interleaved input down to mono for the spectrum stage.
	input := buffer
	if e.config.Audio.InputChannels > 1 {
		channels := e.config.Audio.InputChannels
		for i := range e.config.Audio.FramesPerBuffer {
			if i*channels < len(buffer) {
				e.monoBuffer[i] = buffer[i*channels]
			} else {
				e.monoBuffer[i] = 0
			}
		}
		input = e.monoBuffer
	}

	e.spectrum.Process(input)
	e.analyze()
}

// analyze extracts metrics from the latest snapshot and publishes them.
func (e *Engine) analyze() {
	if err := e.spectrum.SnapshotInto(e.snapshot); err != nil {
		log.Errorf("Audio: Snapshot copy failed: %v", err)
		return
	}

	metrics, params, err := analysis.Extract(e.snapshot, e.detector, time.Now())
	if err != nil {
		log.Errorf("Audio: Extraction failed: %v", err)
		return
	}

	e.latestMu.Lock()
	e.latestMetrics = metrics
	e.latestParams = params
	e.hasMetrics = true
	e.latestMu.Unlock()

	if e.sink != nil {
		e.sink.ApplyVisual(params)
	}
	if e.transport != nil {
		_ = e.transport.Send(&metricsMessage{Type: "metrics", Metrics: metrics, Params: params})
	}
}

// LatestMetrics returns the most recent extraction result. The boolean is
// false until at least one buffer has been analyzed. Implements the UDP
// publisher's metrics source.
func (e *Engine) LatestMetrics() (analysis.Metrics, analysis.VisualParams, bool) {
	e.latestMu.Lock()
	defer e.latestMu.Unlock()
	return e.latestMetrics, e.latestParams, e.hasMetrics
}

// Close stops recording (if active) and the capture stream.
func (e *Engine) Close() error {
	if e.recording() {
		if err := e.StopRecording(); err != nil {
			return err
		}
	}
	return e.StopListening()
}
