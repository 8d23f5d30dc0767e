package irc

import (
	"strings"
	"sync"

	"github.com/lrstanley/girc"
)

// Inbound IRCv3 draft/multiline batches are reassembled into one message.
const (
	capMultiline       = "draft/multiline"
	tagMultilineConcat = "draft/multiline-concat"
	tagBatch           = "batch"
	cmdBATCH           = "BATCH"
)

type batchLine struct {
	text   string
	concat bool
}

type openBatch struct {
	target string
	source *girc.Source
	lines  []batchLine
}

type batchTracker struct {
	mu      sync.Mutex
	batches map[string]*openBatch
}

func newBatchTracker() *batchTracker {
	return &batchTracker{batches: make(map[string]*openBatch)}
}

// open starts tracking a batch; only multiline batches are tracked.
func (bt *batchTracker) open(id, kind, target string, source *girc.Source) bool {
	if kind != capMultiline {
		return false
	}
	bt.mu.Lock()
	defer bt.mu.Unlock()
	bt.batches[id] = &openBatch{target: target, source: source}
	return true
}

func (bt *batchTracker) add(id, text string, concat bool) bool {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	b, ok := bt.batches[id]
	if !ok {
		return false
	}
	b.lines = append(b.lines, batchLine{text: text, concat: concat})
	return true
}

// close stops tracking id and returns the joined body.
func (bt *batchTracker) close(id string) (target string, source *girc.Source, body string, ok bool) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	b, ok := bt.batches[id]
	if !ok {
		return "", nil, "", false
	}
	delete(bt.batches, id)
	return b.target, b.source, joinBatch(b.lines), true
}

// reset drops batches left open by a previous connection.
func (bt *batchTracker) reset() {
	bt.mu.Lock()
	bt.batches = make(map[string]*openBatch)
	bt.mu.Unlock()
}

func (bt *batchTracker) pending() int {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return len(bt.batches)
}

// joinBatch separates lines with newlines, except lines tagged concat
// which continue the previous one.
func joinBatch(lines []batchLine) string {
	var sb strings.Builder
	for i, l := range lines {
		if i > 0 && !l.concat {
			sb.WriteByte('\n')
		}
		sb.WriteString(l.text)
	}
	return sb.String()
}

func batchRef(e girc.Event) (string, bool) {
	if e.Tags == nil {
		return "", false
	}
	id, ok := e.Tags.Get(tagBatch)
	return id, ok && id != ""
}

func hasConcat(e girc.Event) bool {
	if e.Tags == nil {
		return false
	}
	_, ok := e.Tags[tagMultilineConcat]
	return ok
}
