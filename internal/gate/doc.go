// Package gate intercepts HTTP requests while the application is starting.
//
// # Pipeline
//
// Pipeline is the request-handling chain handed to the HTTP server. Interceptors
// register in front of the base handler and can deregister at any time:
//
//	pipeline := gate.NewPipeline(mux)
//	srv := &http.Server{Handler: pipeline}
//
// Each change rebuilds the chain once and publishes it atomically, so a
// deregistered interceptor costs nothing on later requests.
//
// # Gate
//
// Gate registers itself on creation and answers every request until startup
// completes:
//
//   - the progress stream path is handed to the stream handler
//   - blocked administrative paths (health, info) answer 500 so load balancers
//     do not route traffic to a half-initialized instance
//   - everything else gets the static placeholder page
//
// Completion is normally delivered by the progress bus callback. A request that
// still reaches the gate after completion also triggers removal and is passed
// through. Either way the gate deregisters exactly once.
package gate
