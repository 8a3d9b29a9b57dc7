// Package stream serves startup progress as Server-Sent Events.
//
// Each connection gets its own progress subscription and receives one frame
// per initialized component, followed by a terminal frame once startup
// completes:
//
//	data: db
//
//	data: cache
//
//	event: complete
//	data:
//
// Frames are flushed as soon as they are written. When the client goes away,
// a write fails or times out, or the bus shuts down, the handler returns and
// its subscription is released. There are no retries; browsers reconnect and
// replay from the first event.
package stream
