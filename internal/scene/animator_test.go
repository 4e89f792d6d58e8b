// SPDX-License-Identifier: MIT
package scene

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"viz/internal/analysis"
	"viz/internal/config"
	"viz/internal/motion"
	"viz/pkg/utils"
)

type fakeCapture struct {
	listening bool
	startErr  error
	starts    int
	stops     int
}

func (f *fakeCapture) StartListening() error {
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.listening = true
	return nil
}

func (f *fakeCapture) StopListening() error {
	f.stops++
	f.listening = false
	return nil
}

func newTestAnimator(capture Capture) *Animator {
	return NewAnimator(config.Default(), capture)
}

func TestAnimator_StepBroadcastsFrame(t *testing.T) {
	t.Parallel()
	a := newTestAnimator(nil)
	tr := &utils.MockTransport{}
	a.transport = tr

	a.step()
	a.step()

	sent := tr.Sent()
	if len(sent) != 2 {
		t.Fatalf("frames sent: got %d, want 2", len(sent))
	}
	frame, ok := sent[1].(*Frame)
	if !ok {
		t.Fatalf("sent payload: got %T, want *Frame", sent[1])
	}
	if frame.Type != "frame" {
		t.Errorf("frame type: got %q, want \"frame\"", frame.Type)
	}
	if frame.Number != 2 {
		t.Errorf("frame number: got %d, want 2", frame.Number)
	}
	if len(frame.Vertices) != config.DefaultVertexCount {
		t.Errorf("vertices: got %d, want %d", len(frame.Vertices), config.DefaultVertexCount)
	}
	if frame.Width != config.DefaultCanvasWidth || frame.Height != config.DefaultCanvasHeight {
		t.Errorf("canvas: got %gx%g, want %dx%d",
			frame.Width, frame.Height, config.DefaultCanvasWidth, config.DefaultCanvasHeight)
	}
}

func TestAnimator_TogglePlayback(t *testing.T) {
	t.Parallel()
	a := newTestAnimator(nil)

	if got := a.TogglePlayback(); got != false {
		t.Error("first toggle: expected playing=false")
	}
	if got := a.TogglePlayback(); got != true {
		t.Error("second toggle: expected playing=true")
	}
}

func TestAnimator_SetParam(t *testing.T) {
	t.Parallel()
	tests := []struct {
		desc    string
		name    string
		value   float64
		wantErr bool
		check   func(p motion.Params) bool
	}{
		{"Flow speed in range", "flowSpeed", 1.7, false,
			func(p motion.Params) bool { return p.FlowSpeed == 1.7 }},
		{"Flow speed clamped high", "flowSpeed", 99, false,
			func(p motion.Params) bool { return p.FlowSpeed == config.MaxFlowSpeed }},
		{"Wave intensity clamped low", "waveIntensity", -3, false,
			func(p motion.Params) bool { return p.WaveIntensity == config.MinWaveIntensity }},
		{"Color speed in range", "colorSpeed", 0.3, false,
			func(p motion.Params) bool { return p.ColorSpeed == 0.3 }},
		{"Pattern size in range", "patternSize", 1.5, false,
			func(p motion.Params) bool { return p.PatternSize == 1.5 }},
		{"Unknown parameter", "gamma", 1.0, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			a := newTestAnimator(nil)
			err := a.SetParam(tt.name, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetParam(%q, %v): error = %v, wantErr %v", tt.name, tt.value, err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(a.Params()) {
				t.Errorf("SetParam(%q, %v): params %+v fail check", tt.name, tt.value, a.Params())
			}
		})
	}
}

func TestAnimator_ToggleListening(t *testing.T) {
	t.Parallel()
	capture := &fakeCapture{}
	a := newTestAnimator(capture)

	on, err := a.ToggleListening()
	if err != nil || !on {
		t.Fatalf("first toggle: got (%v, %v), want (true, nil)", on, err)
	}
	if capture.starts != 1 {
		t.Errorf("capture starts: got %d, want 1", capture.starts)
	}

	on, err = a.ToggleListening()
	if err != nil || on {
		t.Fatalf("second toggle: got (%v, %v), want (false, nil)", on, err)
	}
	if capture.stops != 1 {
		t.Errorf("capture stops: got %d, want 1", capture.stops)
	}
}

func TestAnimator_ToggleListening_CaptureFailure(t *testing.T) {
	t.Parallel()
	capture := &fakeCapture{startErr: errors.New("device unavailable")}
	a := newTestAnimator(capture)

	on, err := a.ToggleListening()
	if err == nil {
		t.Fatal("expected capture error")
	}
	if on {
		t.Error("listening must stay off after a failed capture start")
	}

	// The failure is not fatal: the display loop still ticks.
	tr := &utils.MockTransport{}
	a.transport = tr
	a.step()
	if len(tr.Sent()) != 1 {
		t.Error("display loop should keep broadcasting after capture failure")
	}
}

// slowCapture counts lifecycle calls and makes starting take long enough
// that unserialized toggles would overlap inside StartListening.
type slowCapture struct {
	starts atomic.Int32
	stops  atomic.Int32
}

func (c *slowCapture) StartListening() error {
	c.starts.Add(1)
	time.Sleep(20 * time.Millisecond)
	return nil
}

func (c *slowCapture) StopListening() error {
	c.stops.Add(1)
	return nil
}

func TestAnimator_ToggleListening_Concurrent(t *testing.T) {
	t.Parallel()
	capture := &slowCapture{}
	a := newTestAnimator(capture)

	// Two viewer clients toggling at once must not both observe the
	// off state and open two capture streams: one starts, the other
	// sees the started state and stops it.
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = a.ToggleListening()
		}()
	}
	wg.Wait()

	if got := capture.starts.Load(); got != 1 {
		t.Errorf("capture starts: got %d, want 1", got)
	}
	if got := capture.stops.Load(); got != 1 {
		t.Errorf("capture stops: got %d, want 1", got)
	}
}

func TestAnimator_ToggleListening_NoCapture(t *testing.T) {
	t.Parallel()
	a := newTestAnimator(nil)
	if _, err := a.ToggleListening(); err == nil {
		t.Error("expected error when no capture is available")
	}
}

func TestAnimator_ModulationLifecycle(t *testing.T) {
	t.Parallel()
	a := newTestAnimator(nil)

	if a.Modulation() != motion.Neutral() {
		t.Fatalf("initial modulation: got %+v, want neutral", a.Modulation())
	}

	a.ApplyVisual(analysis.VisualParams{Intensity: 2, Speed: 1.5, PatternSize: 1.2})
	if a.Modulation() == motion.Neutral() {
		t.Fatal("expected modulation to move off neutral after ApplyVisual")
	}

	// Stopping audio resets the modulation so motion degrades gracefully.
	a.SetListening(false)
	if a.Modulation() != motion.Neutral() {
		t.Errorf("modulation after listening stopped: got %+v, want neutral", a.Modulation())
	}
}
