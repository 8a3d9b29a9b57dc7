// Package startup connects the component container to the progress bus.
package startup
