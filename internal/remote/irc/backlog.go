package irc

import "github.com/soyeahso/cordbridge/internal/remote"

// ring keeps the most recent messages of one channel.
type ring struct {
	buf   []*remote.Message
	start int
	size  int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]*remote.Message, capacity)}
}

func (r *ring) add(m *remote.Message) {
	if len(r.buf) == 0 {
		return
	}
	idx := (r.start + r.size) % len(r.buf)
	r.buf[idx] = m
	if r.size < len(r.buf) {
		r.size++
		return
	}
	r.start = (r.start + 1) % len(r.buf)
}

// newest returns up to limit messages, most recent first.
func (r *ring) newest(limit int) []*remote.Message {
	n := r.size
	if limit >= 0 && limit < n {
		n = limit
	}
	out := make([]*remote.Message, 0, n)
	for i := 0; i < n; i++ {
		idx := (r.start + r.size - 1 - i) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

func (r *ring) count() int { return r.size }
