// SPDX-License-Identifier: MIT
package transport

import "viz/internal/log"

// LoggingTransport implements Transport by discarding data, optionally
// tracing it at debug level. Used for headless runs and as a stand-in
// when the server is disabled.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	log.Infof("Transport: Using logging transport")
	return &LoggingTransport{}
}

// Send traces the payload type at debug level. It never fails.
func (lt *LoggingTransport) Send(data any) error {
	log.Debugf("Transport: %T", data)
	return nil
}

// Close is a no-op.
func (lt *LoggingTransport) Close() error {
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
