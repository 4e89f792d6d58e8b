// SPDX-License-Identifier: MIT
package audio

import (
	"sync"
	"testing"

	"viz/internal/analysis"
	"viz/internal/config"
	"viz/pkg/utils"
)

type captureSink struct {
	mu     sync.Mutex
	params []analysis.VisualParams
}

func (s *captureSink) ApplyVisual(p analysis.VisualParams) {
	s.mu.Lock()
	s.params = append(s.params, p)
	s.mu.Unlock()
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.params)
}

// newAnalysisEngine builds an engine with the full analysis chain but no
// capture stream, so buffers can be pushed through processBuffer directly.
func newAnalysisEngine(t *testing.T, channels int) *Engine {
	t.Helper()

	cfg := config.Default()
	cfg.Audio.SampleRate = testSampleRate
	cfg.Audio.FramesPerBuffer = testFrameSize
	cfg.Audio.InputChannels = channels

	spectrum, err := analysis.NewSpectrum(cfg.Audio.FramesPerBuffer, cfg.Audio.SampleRate, analysis.Hann)
	if err != nil {
		t.Fatalf("NewSpectrum: %v", err)
	}

	return &Engine{
		config:      cfg,
		inputBuffer: make([]int32, cfg.Audio.FramesPerBuffer*channels),
		monoBuffer:  make([]int32, cfg.Audio.FramesPerBuffer),
		spectrum:    spectrum,
		snapshot:    make([]byte, spectrum.Bins()),
		detector: analysis.NewBeatDetector(
			cfg.Analysis.BeatDebounce,
			cfg.Analysis.BeatEnergyRatio,
			cfg.Analysis.BeatHistorySize,
		),
		gateEnabled:   true,
		gateThreshold: 2147483647 / 1000,
	}
}

func TestProcessBufferPublishesMetrics(t *testing.T) {
	engine := newAnalysisEngine(t, 1)
	sink := &captureSink{}
	tr := &utils.MockTransport{}
	engine.SetSink(sink)
	engine.SetTransport(tr)

	buffer := utils.GenerateSineWave(testFrameSize, testSampleRate, 440)
	engine.processBuffer(buffer)

	if sink.count() != 1 {
		t.Fatalf("Sink received %d updates, want 1", sink.count())
	}

	sent := tr.Sent()
	if len(sent) != 1 {
		t.Fatalf("Transport received %d messages, want 1", len(sent))
	}
	msg, ok := sent[0].(*metricsMessage)
	if !ok {
		t.Fatalf("Transport received %T, want *metricsMessage", sent[0])
	}
	if msg.Type != "metrics" {
		t.Errorf("Message type = %q, want %q", msg.Type, "metrics")
	}
	if msg.Metrics.Amplitude <= 0 {
		t.Errorf("Amplitude = %g, want > 0 for a full-scale sine", msg.Metrics.Amplitude)
	}

	metrics, params, analyzed := engine.LatestMetrics()
	if !analyzed {
		t.Fatal("LatestMetrics should report a result after processing")
	}
	if metrics.Amplitude != msg.Metrics.Amplitude {
		t.Errorf("LatestMetrics amplitude = %g, want %g", metrics.Amplitude, msg.Metrics.Amplitude)
	}
	if params.Intensity != msg.Params.Intensity {
		t.Errorf("LatestMetrics intensity = %g, want %g", params.Intensity, msg.Params.Intensity)
	}
}

func TestProcessBufferGateBlocksSilence(t *testing.T) {
	engine := newAnalysisEngine(t, 1)
	sink := &captureSink{}
	tr := &utils.MockTransport{}
	engine.SetSink(sink)
	engine.SetTransport(tr)

	silence := make([]int32, testFrameSize)
	engine.processBuffer(silence)

	if sink.count() != 0 {
		t.Errorf("Sink received %d updates for silence, want 0", sink.count())
	}
	if len(tr.Sent()) != 0 {
		t.Errorf("Transport received %d messages for silence, want 0", len(tr.Sent()))
	}
	if _, _, analyzed := engine.LatestMetrics(); analyzed {
		t.Error("LatestMetrics should report nothing before the gate opens")
	}

	engine.DisableGate()
	engine.processBuffer(silence)

	if sink.count() != 1 {
		t.Errorf("Sink received %d updates with gate disabled, want 1", sink.count())
	}
}

func TestProcessBufferFoldsStereo(t *testing.T) {
	mono := newAnalysisEngine(t, 1)
	stereo := newAnalysisEngine(t, 2)
	monoTr := &utils.MockTransport{}
	stereoTr := &utils.MockTransport{}
	mono.SetTransport(monoTr)
	stereo.SetTransport(stereoTr)

	wave := utils.GenerateComplexWave(testFrameSize, testSampleRate)

	// Interleave the same signal on both channels: the left-channel fold
	// must reproduce the mono analysis exactly.
	interleaved := make([]int32, testFrameSize*2)
	for i, s := range wave {
		interleaved[i*2] = s
		interleaved[i*2+1] = s
	}

	mono.processBuffer(wave)
	stereo.processBuffer(interleaved)

	monoMetrics, _, ok := mono.LatestMetrics()
	if !ok {
		t.Fatal("Mono engine produced no metrics")
	}
	stereoMetrics, _, ok := stereo.LatestMetrics()
	if !ok {
		t.Fatal("Stereo engine produced no metrics")
	}

	if monoMetrics.Amplitude != stereoMetrics.Amplitude {
		t.Errorf("Stereo fold amplitude = %g, want %g", stereoMetrics.Amplitude, monoMetrics.Amplitude)
	}
	if monoMetrics.Bands != stereoMetrics.Bands {
		t.Errorf("Stereo fold bands = %+v, want %+v", stereoMetrics.Bands, monoMetrics.Bands)
	}
}

func TestProcessBufferNoAllocsHotPath(t *testing.T) {
	engine := newAnalysisEngine(t, 1)
	engine.DisableGate()

	// A flat signal produces no spectral peaks, so the whole chain runs
	// on pre-allocated buffers.
	buffer := make([]int32, testFrameSize)

	// Warm up so the detector history is at capacity.
	for range 10 {
		engine.processBuffer(buffer)
	}

	allocs := testing.AllocsPerRun(100, func() {
		engine.processBuffer(buffer)
	})

	if allocs > 0 {
		t.Errorf("Processing hot path allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func BenchmarkProcessBuffer(b *testing.B) {
	cfg := config.Default()
	cfg.Audio.SampleRate = testSampleRate
	cfg.Audio.FramesPerBuffer = testFrameSize
	cfg.Audio.InputChannels = 1

	spectrum, err := analysis.NewSpectrum(cfg.Audio.FramesPerBuffer, cfg.Audio.SampleRate, analysis.Hann)
	if err != nil {
		b.Fatalf("NewSpectrum: %v", err)
	}
	engine := &Engine{
		config:      cfg,
		monoBuffer:  make([]int32, cfg.Audio.FramesPerBuffer),
		spectrum:    spectrum,
		snapshot:    make([]byte, spectrum.Bins()),
		detector:    analysis.NewBeatDetector(cfg.Analysis.BeatDebounce, cfg.Analysis.BeatEnergyRatio, cfg.Analysis.BeatHistorySize),
		gateEnabled: true,
	}
	buffer := utils.GenerateComplexWave(testFrameSize, testSampleRate)

	b.ReportAllocs()
	b.ResetTimer()

	for b.Loop() {
		engine.processBuffer(buffer)
	}
}
