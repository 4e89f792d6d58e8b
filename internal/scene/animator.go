// SPDX-License-Identifier: MIT
/*
Package scene drives the display loop: on every frame tick it advances the
vertex motion engine, derives the visible edges and broadcasts the
assembled frame. It also implements the control surface viewer clients
talk to (playback toggle, listening toggle, slider updates).

The display loop and the audio loop run on independent cadences; the only
data crossing between them is the audio modulation, guarded by the
animator's mutex.
*/
package scene

import (
	"fmt"
	"sync"
	"time"

	"viz/internal/analysis"
	"viz/internal/config"
	"viz/internal/log"
	"viz/internal/motion"
	"viz/internal/transport"
)

// Capture is the audio capture surface the animator toggles. Implemented
// by the audio engine; nil when running without audio support.
type Capture interface {
	StartListening() error
	StopListening() error
}

// Animator owns the vertex field, the animation state, the user parameters
// and the latest audio modulation.
type Animator struct {
	mu        sync.Mutex
	field     *motion.Field
	state     motion.State
	params    motion.Params
	mod       motion.Modulation
	listening bool

	// Serializes the listening check-then-start/stop sequence; every
	// connected client has its own control goroutine.
	toggleMu sync.Mutex

	capture   Capture
	transport transport.Transport
	interval  time.Duration

	// Reused across ticks to keep the loop allocation-light.
	edgeBuf []motion.Edge
	frame   Frame

	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAnimator creates an animator for the configured field. The wave
// effect starts in the playing state; listening starts off until toggled
// or until the engine reports a successful capture start.
func NewAnimator(cfg *config.Config, capture Capture) *Animator {
	v := cfg.Visual
	return &Animator{
		field: motion.NewField(v.VertexCount, v.CanvasWidth, v.CanvasHeight, v.Seed),
		state: motion.State{Playing: true},
		params: motion.Params{
			FlowSpeed:     v.FlowSpeed,
			ColorSpeed:    v.ColorSpeed,
			WaveIntensity: v.WaveIntensity,
			PatternSize:   v.PatternSize,
		}.Clamp(),
		mod:      motion.Neutral(),
		capture:  capture,
		interval: cfg.Server.FrameInterval,
		edgeBuf:  make([]motion.Edge, 0, v.VertexCount*(v.VertexCount-1)/2),
		doneChan: make(chan struct{}),
	}
}

// Start launches the display loop, broadcasting frames on tr until Stop.
func (a *Animator) Start(tr transport.Transport) {
	a.mu.Lock()
	a.transport = tr
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		log.Infof("Scene: Display loop started (%s per frame, %d vertices)",
			a.interval, len(a.field.Vertices))
		for {
			select {
			case <-ticker.C:
				a.step()
			case <-a.doneChan:
				return
			}
		}
	}()
}

// Stop terminates the display loop and waits for it to finish. Idempotent.
func (a *Animator) Stop() {
	a.stopOnce.Do(func() {
		close(a.doneChan)
	})
	a.wg.Wait()
	log.Infof("Scene: Display loop stopped")
}

// step advances the animation one frame and broadcasts the result.
func (a *Animator) step() {
	a.mu.Lock()
	motion.Tick(a.field, &a.state, a.params, a.mod)
	a.edgeBuf = motion.AppendEdges(a.edgeBuf[:0], a.field)
	buildFrame(&a.frame, a.field, a.edgeBuf, a.state.Frame, a.state.Playing, a.listening)
	tr := a.transport
	a.mu.Unlock()

	if tr != nil {
		_ = tr.Send(&a.frame)
	}
}

// ApplyVisual installs a fresh modulation derived from the latest audio
// analysis. Called from the audio loop.
func (a *Animator) ApplyVisual(p analysis.VisualParams) {
	a.mu.Lock()
	a.mod = motion.Modulate(p)
	a.mu.Unlock()
}

// ResetModulation returns the modulation to neutral so the animation
// degrades gracefully when audio stops flowing.
func (a *Animator) ResetModulation() {
	a.mu.Lock()
	a.mod = motion.Neutral()
	a.mu.Unlock()
}

// Modulation returns the modulation currently applied to the base parameters.
func (a *Animator) Modulation() motion.Modulation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mod
}

// TogglePlayback flips the wave effect, returning the new state.
// Implements transport.Controller.
func (a *Animator) TogglePlayback() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Playing = !a.state.Playing
	return a.state.Playing
}

// ToggleListening starts or stops audio capture, returning the new state.
// Concurrent calls are serialized so only one can act on a given state.
// A failed capture start leaves listening off and returns the error; the
// display loop is unaffected either way. Implements transport.Controller.
func (a *Animator) ToggleListening() (bool, error) {
	a.toggleMu.Lock()
	defer a.toggleMu.Unlock()

	a.mu.Lock()
	listening := a.listening
	capture := a.capture
	a.mu.Unlock()

	if capture == nil {
		return false, fmt.Errorf("no audio capture available")
	}

	if listening {
		err := capture.StopListening()
		a.setListening(false)
		a.ResetModulation()
		return false, err
	}

	if err := capture.StartListening(); err != nil {
		a.setListening(false)
		return false, err
	}
	a.setListening(true)
	return true, nil
}

// SetListening records the capture state without driving it, for callers
// that start the engine themselves.
func (a *Animator) SetListening(on bool) {
	a.setListening(on)
	if !on {
		a.ResetModulation()
	}
}

func (a *Animator) setListening(on bool) {
	a.mu.Lock()
	a.listening = on
	a.mu.Unlock()
}

// SetParam updates one named slider parameter, clamping it to the slider's
// range. Unknown names are rejected. Implements transport.Controller.
func (a *Animator) SetParam(name string, value float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch name {
	case "flowSpeed":
		a.params.FlowSpeed = value
	case "colorSpeed":
		a.params.ColorSpeed = value
	case "waveIntensity":
		a.params.WaveIntensity = value
	case "patternSize":
		a.params.PatternSize = value
	default:
		return fmt.Errorf("unknown parameter %q", name)
	}
	a.params = a.params.Clamp()
	return nil
}

// Params returns the current user parameters.
func (a *Animator) Params() motion.Params {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.params
}

var _ transport.Controller = (*Animator)(nil)
