// SPDX-License-Identifier: MIT
package transport

// Transport defines a generic interface for publishing scene frames,
// metrics and events to whoever is watching. Implementations must be
// thread-safe; the display loop and the audio loop both send.
type Transport interface {
	Send(data any) error
	Close() error
}

// Controller handles control messages arriving from viewer clients.
// Implemented by the scene animator; kept as an interface here so the
// transport does not depend on it.
type Controller interface {
	// TogglePlayback flips the wave effect on or off, returning the new state.
	TogglePlayback() bool
	// ToggleListening starts or stops audio capture, returning the new
	// state. A capture error leaves listening off and is reported to the
	// caller; it must never take the visualization down.
	ToggleListening() (bool, error)
	// SetParam updates one named slider parameter; out-of-range values are
	// clamped, unknown names rejected.
	SetParam(name string, value float64) error
}
