package embedding

import (
	"sync"

	"docqa/internal/port"
)

// Provider names an embedder and knows how to build it.
type Provider struct {
	Name  string
	Build func() (port.Embedder, error)
}

// handle builds its embedder on first use, at most once, even under concurrent
// first calls. The build error is kept as well: a provider that failed to load
// stays unavailable for the life of the process.
type handle struct {
	name  string
	build func() (port.Embedder, error)

	once sync.Once
	e    port.Embedder
	err  error
}

func newHandle(p Provider) *handle {
	return &handle{name: p.Name, build: p.Build}
}

func (h *handle) get() (port.Embedder, error) {
	h.once.Do(func() {
		h.e, h.err = h.build()
	})
	return h.e, h.err
}

// Static wraps an already constructed embedder as a Provider.
func Static(e port.Embedder) Provider {
	return Provider{
		Name:  e.Name(),
		Build: func() (port.Embedder, error) { return e, nil },
	}
}
