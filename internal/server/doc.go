// Package server runs the bootwatch HTTP server.
//
// # Startup Sequence
//
// New wires the pieces together before anything listens:
//
//  1. a progress bus (instrumented by internal/metrics when enabled)
//  2. a startup hook that turns container callbacks into bus events
//  3. the application mux: /, /health, /info, the metrics path and the stream path
//  4. a pipeline around the mux with the startup gate registered on it
//
// Serve then starts accepting connections first and only afterwards runs the
// component container. While components initialize the gate answers every
// request: the stream path streams progress, blocked paths get 500 and all
// other paths get the placeholder page. Once the container reports that all
// components are initialized the gate removes itself and requests reach the mux.
//
// # Listeners
//
// With tailscale.enabled the server joins the tailnet through tsnet and listens
// on :80 there; server.http_addr is ignored. The auth key comes from
// tailscale.auth_key or TS_AUTHKEY.
//
// # Shutdown
//
// Shutdown closes the progress bus first so open streams return, then shuts
// the HTTP server down and finally leaves the tailnet.
package server
