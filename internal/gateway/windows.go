package gateway

import (
	"sort"
	"sync"

	"github.com/soyeahso/cordbridge/internal/domain"
)

// Windows records which windows the bridge has asked the UI shell to
// show and pushes window-open and window-close as they change.
type Windows struct {
	srv *Server

	mu   sync.Mutex
	open map[string]bool
}

func newWindows(srv *Server) *Windows {
	return &Windows{srv: srv, open: make(map[string]bool)}
}

// Open asks the UI to show kind. Opening an open window pushes nothing.
func (w *Windows) Open(kind string) {
	w.mu.Lock()
	already := w.open[kind]
	w.open[kind] = true
	w.mu.Unlock()
	if !already {
		w.srv.Push(domain.EventWindowOpen, domain.WindowSignal{Window: kind})
	}
}

// Close asks the UI to close kind.
func (w *Windows) Close(kind string) {
	w.mu.Lock()
	wasOpen := w.open[kind]
	delete(w.open, kind)
	w.mu.Unlock()
	if wasOpen {
		w.srv.Push(domain.EventWindowClose, domain.WindowSignal{Window: kind})
	}
}

func (w *Windows) IsOpen(kind string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open[kind]
}

// List returns the open windows, sorted.
func (w *Windows) List() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.open))
	for k := range w.open {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// replay tells a newly connected UI which windows should be showing.
// Replayed frames are outside the push stream and carry no sequence.
func (w *Windows) replay(p *peer) {
	for _, kind := range w.List() {
		f, err := eventFrame(domain.EventWindowOpen, domain.WindowSignal{Window: kind}, 0)
		if err == nil {
			err = p.send(f)
		}
		if err != nil {
			w.srv.log.Warn().Err(err).Str("connId", p.id).Msg("window replay failed")
			return
		}
	}
}
