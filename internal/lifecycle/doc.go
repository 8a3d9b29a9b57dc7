// Package lifecycle constructs application components and reports their progress.
//
// A Container runs every registered InitFunc concurrently (optionally bounded)
// and tells its Listener about each component as it finishes, then once more
// when all of them are done. The slow demo components share a rate limiter so
// that startup takes long enough to watch.
package lifecycle
