// Package server exposes the mode switch controller over HTTP.
//
// # Endpoints
//
//   - GET  /api/status          current mode, service activity and switch phase
//   - POST /api/switch/{mode}   switch the service to a mode
//   - POST /api/restart         restart the service without changing mode
//   - POST /api/setup           capture and synthesize artifacts
//   - GET  /api/modes           configured modes
//   - GET  /healthz             liveness
//   - GET  /metrics             Prometheus metrics
//
// Every API response is JSON. A switch answers 200 on success, 409 when
// another operation is running, 400 for an unknown mode and 500 otherwise;
// the body is always the switch result.
package server
