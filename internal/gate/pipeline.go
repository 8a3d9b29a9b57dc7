// ABOUTME: Mutable request pipeline that interceptors can join and leave at runtime
// ABOUTME: Publishes the composed handler chain through an atomic pointer

package gate

import (
	"net/http"
	"sync"
	"sync/atomic"
)

// Interceptor wraps the rest of the pipeline. Implementations are compared by
// identity, so they should be pointer types.
type Interceptor interface {
	Wrap(next http.Handler) http.Handler
}

// Registrar is the pipeline surface an interceptor uses to remove itself.
type Registrar interface {
	Register(i Interceptor)
	Deregister(i Interceptor) bool
}

// Pipeline is an http.Handler whose chain of interceptors can change while it
// serves traffic. Changes rebuild the chain once; requests only pay an atomic
// load, and once every interceptor has left they go straight to the base
// handler.
type Pipeline struct {
	base http.Handler

	mu           sync.Mutex
	interceptors []Interceptor

	current atomic.Pointer[http.Handler]
}

// NewPipeline creates a pipeline that ends in base.
func NewPipeline(base http.Handler) *Pipeline {
	p := &Pipeline{base: base}
	p.current.Store(&base)
	return p
}

// Register adds an interceptor in front of the existing chain.
// Registering the same interceptor twice has no effect.
func (p *Pipeline) Register(i Interceptor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, existing := range p.interceptors {
		if existing == i {
			return
		}
	}
	p.interceptors = append(p.interceptors, i)
	p.rebuildLocked()
}

// Deregister removes an interceptor and reports whether it was present.
func (p *Pipeline) Deregister(i Interceptor) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for idx, existing := range p.interceptors {
		if existing == i {
			p.interceptors = append(p.interceptors[:idx], p.interceptors[idx+1:]...)
			p.rebuildLocked()
			return true
		}
	}
	return false
}

// Len returns the number of registered interceptors.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.interceptors)
}

// ServeHTTP dispatches to the current chain.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	(*p.current.Load()).ServeHTTP(w, r)
}

// rebuildLocked composes the chain so that the most recently registered
// interceptor runs first.
func (p *Pipeline) rebuildLocked() {
	h := p.base
	for _, i := range p.interceptors {
		h = i.Wrap(h)
	}
	p.current.Store(&h)
}
