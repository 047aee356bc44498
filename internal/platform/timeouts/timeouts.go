// Package timeouts defines shared timeout constants used by the cart service.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight work during graceful
// shutdown.
const Shutdown = 5 * time.Second

// WSWrite caps a single outbound WebSocket frame write. A peer that cannot
// accept a frame within this window is treated as disconnected.
const WSWrite = 10 * time.Second

// TelemetryShutdown caps span flushing when the process exits.
const TelemetryShutdown = 5 * time.Second

// Probe bounds a command-line health probe.
const Probe = 5 * time.Second
