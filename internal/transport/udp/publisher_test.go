// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"math"
	"net"
	"testing"
	"time"

	"viz/internal/analysis"
)

const packetSize = 33 // 4 + 8 + 4*5 + 1

type fakeSource struct {
	metrics analysis.Metrics
	params  analysis.VisualParams
	ready   bool
}

func (f *fakeSource) LatestMetrics() (analysis.Metrics, analysis.VisualParams, bool) {
	return f.metrics, f.params, f.ready
}

// newTestLink starts a loopback UDP listener and a sender pointed at it.
func newTestLink(t *testing.T) (net.PacketConn, *Sender) {
	t.Helper()

	listener, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	sender, err := NewSender(listener.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	t.Cleanup(func() { sender.Close() })

	return listener, sender
}

func readPacket(t *testing.T, listener net.PacketConn) []byte {
	t.Helper()

	buf := make([]byte, 64)
	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := listener.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	return buf[:n]
}

func TestPacketLayout(t *testing.T) {
	listener, sender := newTestLink(t)

	source := &fakeSource{
		metrics: analysis.Metrics{
			Amplitude: 0.25,
			Bands:     analysis.BandEnergy{Low: 0.8, Mid: 0.4, High: 0.1},
			Beat:      true,
		},
		params: analysis.VisualParams{Intensity: 0.35},
		ready:  true,
	}

	pub, err := NewPublisher(10*time.Millisecond, sender, source)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}

	before := time.Now().UnixNano()
	pub.buildAndSendPacket()

	packet := readPacket(t, listener)
	if len(packet) != packetSize {
		t.Fatalf("Packet size = %d, want %d", len(packet), packetSize)
	}

	seq := binary.BigEndian.Uint32(packet[0:4])
	if seq != 1 {
		t.Errorf("Sequence = %d, want 1", seq)
	}

	ts := int64(binary.BigEndian.Uint64(packet[4:12]))
	if ts < before || ts > time.Now().UnixNano() {
		t.Errorf("Timestamp %d outside test window", ts)
	}

	floats := []struct {
		name string
		off  int
		want float32
	}{
		{"amplitude", 12, 0.25},
		{"low", 16, 0.8},
		{"mid", 20, 0.4},
		{"high", 24, 0.1},
		{"intensity", 28, 0.35},
	}
	for _, f := range floats {
		got := math.Float32frombits(binary.BigEndian.Uint32(packet[f.off : f.off+4]))
		if got != f.want {
			t.Errorf("Field %s = %g, want %g", f.name, got, f.want)
		}
	}

	if packet[32] != 1 {
		t.Errorf("Beat flag = %d, want 1", packet[32])
	}

	// Sequence number advances per packet.
	pub.buildAndSendPacket()
	packet = readPacket(t, listener)
	if seq := binary.BigEndian.Uint32(packet[0:4]); seq != 2 {
		t.Errorf("Sequence = %d, want 2", seq)
	}
}

func TestNoPacketBeforeFirstAnalysis(t *testing.T) {
	listener, sender := newTestLink(t)

	source := &fakeSource{ready: false}
	pub, err := NewPublisher(10*time.Millisecond, sender, source)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}

	pub.buildAndSendPacket()

	buf := make([]byte, 64)
	listener.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if n, _, err := listener.ReadFrom(buf); err == nil {
		t.Errorf("Got %d-byte packet before any analysis result", n)
	}
}

func TestPublisherStartStop(t *testing.T) {
	_, sender := newTestLink(t)

	pub, err := NewPublisher(5*time.Millisecond, sender, &fakeSource{})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}

	pub.Start()
	pub.Start() // Second Start while running is a no-op.

	if err := pub.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := pub.Stop(); err != nil {
		t.Fatalf("Second Stop: %v", err)
	}

	// The publisher can be restarted after a stop.
	pub.Start()
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestShutdownClosesSender(t *testing.T) {
	_, sender := newTestLink(t)

	pub, err := NewPublisher(5*time.Millisecond, sender, &fakeSource{})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	pub.Start()

	// Shutdown order: stop the publisher first, then close its sender.
	if err := pub.Close(); err != nil {
		t.Fatalf("Close publisher: %v", err)
	}
	if err := sender.Close(); err != nil {
		t.Fatalf("Close sender: %v", err)
	}
	if err := sender.Close(); err != nil {
		t.Fatalf("Second sender Close: %v", err)
	}

	if err := sender.Send([]byte{0x01}); err == nil {
		t.Error("Send after Close should fail")
	}
}

func TestNewPublisherValidation(t *testing.T) {
	_, sender := newTestLink(t)

	if _, err := NewPublisher(time.Second, nil, &fakeSource{}); err == nil {
		t.Error("Expected error for nil sender")
	}
	if _, err := NewPublisher(time.Second, sender, nil); err == nil {
		t.Error("Expected error for nil source")
	}

	pub, err := NewPublisher(0, sender, &fakeSource{})
	if err != nil {
		t.Fatalf("NewPublisher with zero interval: %v", err)
	}
	if pub.interval != 33*time.Millisecond {
		t.Errorf("Default interval = %s, want 33ms", pub.interval)
	}
}
