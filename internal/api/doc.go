// Package api implements the HTTP control API and WebSocket event stream
// for Boss Hunter.
//
// This package provides:
//   - REST endpoints to start and stop runs, adjust the confidence
//     threshold, and read run history and template status
//   - WebSocket hub pushing a status snapshot, then hunter events
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server is a thin surface over the hunter.Controller. It never
// drives the automaton itself: POST /run/start hands over to the
// controller, which runs on its own goroutine and reports progress
// through event sinks. One of those sinks is the Hub, so WebSocket
// clients listening on "hunter.events" see every state change, match
// and click as it happens.
//
// # Security
//
// There are no user accounts. The API binds to 127.0.0.1 by default;
// expose it beyond the local machine only behind something that
// authenticates.
//
// # Graceful Degradation
//
// MQTT and InfluxDB are optional. Their health checks are reported by
// GET /health but never block the control endpoints.
package api
