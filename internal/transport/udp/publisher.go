// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"viz/internal/analysis"
	"viz/internal/log"
)

// MetricsProvider supplies the most recent extraction result. The second
// return value is false until audio has been analyzed at least once.
type MetricsProvider interface {
	LatestMetrics() (analysis.Metrics, analysis.VisualParams, bool)
}

// Publisher periodically fetches the latest audio metrics, packs them into
// a compact binary format and sends them over UDP. Intended for external
// consumers (lighting rigs, secondary visuals) that want the metrics
// without speaking WebSocket. Runs in its own goroutine between Start and
// Stop.
type Publisher struct {
	sender   *Sender
	source   MetricsProvider
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum  uint32
	packetBuffer *bytes.Buffer // Reused across packets.
}

// NewPublisher creates a Publisher. An interval <= 0 defaults to 33ms (~30Hz).
func NewPublisher(interval time.Duration, sender *Sender, source MetricsProvider) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp publisher: sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("udp publisher: metrics source cannot be nil")
	}
	if interval <= 0 {
		interval = 33 * time.Millisecond
		log.Warnf("UDP Publisher: Invalid interval provided, defaulting to %s", interval)
	}

	return &Publisher{
		sender:       sender,
		source:       source,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start begins periodic publishing. Safe to call more than once; extra
// calls are no-ops while running.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		log.Warnf("UDP Publisher: Start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Infof("UDP Publisher: Started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it.
// Idempotent.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	log.Infof("UDP Publisher: Stopped")
	return nil
}

/*
Packet layout (BigEndian):

	| Field           | Type    | Bytes |
	|-----------------|---------|-------|
	| Sequence number | uint32  | 4     |
	| Timestamp       | int64   | 8     | Nanoseconds since epoch
	| Amplitude       | float32 | 4     |
	| Low band        | float32 | 4     |
	| Mid band        | float32 | 4     |
	| High band       | float32 | 4     |
	| Intensity       | float32 | 4     |
	| Beat flag       | uint8   | 1     | 1 if a beat was detected
*/
func (p *Publisher) buildAndSendPacket() {
	metrics, params, ok := p.source.LatestMetrics()
	if !ok {
		return // Nothing analyzed yet.
	}

	p.sequenceNum++
	p.packetBuffer.Reset()

	var beat uint8
	if metrics.Beat {
		beat = 1
	}

	fields := []any{
		p.sequenceNum,
		time.Now().UnixNano(),
		float32(metrics.Amplitude),
		float32(metrics.Bands.Low),
		float32(metrics.Bands.Mid),
		float32(metrics.Bands.High),
		float32(params.Intensity),
		beat,
	}
	for _, f := range fields {
		if err := binary.Write(p.packetBuffer, binary.BigEndian, f); err != nil {
			log.Errorf("UDP Publisher: Error packing packet: %v", err)
			return
		}
	}

	if err := p.sender.Send(p.packetBuffer.Bytes()); err == nil {
		log.Debugf("UDP Publisher: Sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
	}
}

// Close implements io.Closer by stopping the publisher goroutine.
func (p *Publisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*Publisher)(nil)
