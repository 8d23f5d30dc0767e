package gateway

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/cordbridge/internal/logging"
)

// writeWait bounds a single frame write so one stalled UI cannot hold up
// pushes to the others.
const writeWait = 10 * time.Second

// peer is one authenticated socket.
type peer struct {
	id     string
	info   ClientInfo
	method string // how it authenticated
	since  time.Time
	ws     *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func newPeer(ws *websocket.Conn, info ClientInfo, method string) *peer {
	return &peer{
		id:     uuid.NewString(),
		info:   info,
		method: method,
		since:  time.Now(),
		ws:     ws,
	}
}

// write runs fn with the write lock held and a fresh deadline set.
// gorilla allows one concurrent writer per connection.
func (p *peer) write(fn func(*websocket.Conn) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClientClosed
	}
	p.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return fn(p.ws)
}

func (p *peer) send(f Frame) error {
	return p.write(func(ws *websocket.Conn) error { return ws.WriteJSON(f) })
}

func (p *peer) reply(id string, payload any) error {
	f, err := resultFrame(id, payload)
	if err != nil {
		return err
	}
	return p.send(f)
}

func (p *peer) fail(id string, shape ErrorShape) error {
	return p.send(failureFrame(id, shape))
}

// next blocks for the next frame. Binary and malformed messages are
// errors; the connection is not usable after them.
func (p *peer) next() (Frame, error) {
	var f Frame
	_, data, err := p.ws.ReadMessage()
	if err != nil {
		return f, err
	}
	err = json.Unmarshal(data, &f)
	return f, err
}

func (p *peer) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.ws == nil {
		return nil
	}
	return p.ws.Close()
}

// peerSet is the set of live sockets the push stream fans out to.
type peerSet struct {
	log *logging.Logger

	mu    sync.RWMutex
	peers map[string]*peer
}

func newPeerSet(log *logging.Logger) *peerSet {
	return &peerSet{log: log, peers: make(map[string]*peer)}
}

func (s *peerSet) join(p *peer) {
	s.mu.Lock()
	s.peers[p.id] = p
	n := len(s.peers)
	s.mu.Unlock()
	s.log.Info().Str("connId", p.id).Str("client", p.info.ID).Str("mode", p.info.Mode).Int("peers", n).Msg("client joined")
}

// leave removes p and closes its socket.
func (s *peerSet) leave(p *peer) {
	s.mu.Lock()
	delete(s.peers, p.id)
	n := len(s.peers)
	s.mu.Unlock()
	p.close()
	s.log.Info().Str("connId", p.id).Dur("connected", time.Since(p.since)).Int("peers", n).Msg("client left")
}

func (s *peerSet) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// broadcast encodes one event frame and writes it to every open UI peer.
// A peer whose write fails is closed: gorilla connections are unusable
// after a write error, and its read loop then removes it. It returns
// the number of peers that received the frame.
func (s *peerSet) broadcast(event string, payload any, seq int64) (int, error) {
	f, err := eventFrame(event, payload, seq)
	if err != nil {
		return 0, err
	}
	data, err := json.Marshal(f)
	if err != nil {
		return 0, err
	}
	msg, err := websocket.NewPreparedMessage(websocket.TextMessage, data)
	if err != nil {
		return 0, err
	}

	s.mu.RLock()
	targets := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		if p.info.wantsPushes() {
			targets = append(targets, p)
		}
	}
	s.mu.RUnlock()

	delivered := 0
	for _, p := range targets {
		err := p.write(func(ws *websocket.Conn) error { return ws.WritePreparedMessage(msg) })
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrClientClosed):
		default:
			s.log.Warn().Err(err).Str("connId", p.id).Str("event", event).Msg("push failed, dropping client")
			p.close()
		}
	}
	return delivered, nil
}

func (s *peerSet) closeAll() {
	s.mu.Lock()
	all := s.peers
	s.peers = make(map[string]*peer)
	s.mu.Unlock()
	for _, p := range all {
		p.close()
	}
}
