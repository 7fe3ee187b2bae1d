// Package server provides the HTTP control surface a presentation layer uses to drive sync runs.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [MuxRouter] implementation uses gorilla/mux internally for path variables and method matching.
//
// # Endpoints
//
//	POST /sync              → start a run, body {"playlist": "<folder name>"}, answers 202 with the run id
//	POST /runs/{id}/cancel  → stop dispatching further tracks of a run
//	GET  /runs/{id}         → state, progress and, once done, the sync report
//	GET  /metrics           → Prometheus metrics
//	GET  /healthz           → liveness
//
// Playlists are addressed by folder name under the configured library root; paths are rejected.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which lists their routes so a handler can register
// several endpoints while keeping route definitions within the implementation.
package server
