package xmpp

import (
	"context"
	"sync"

	"github.com/tfreitas/roomsync/internal/stanza"
)

// Pipe is an in-memory Transport used by tests and by the daemon's dry-run
// mode. Inbound stanzas are injected with Deliver; everything sent is
// recorded and can be inspected with Sent.
type Pipe struct {
	mu      sync.Mutex
	sent    []*stanza.Node
	stanzas chan *stanza.Node
	signals chan Signal
	closed  bool
}

// NewPipe creates a connected in-memory transport.
func NewPipe() *Pipe {
	return &Pipe{
		stanzas: make(chan *stanza.Node, 64),
		signals: make(chan Signal, 8),
	}
}

// Deliver injects an inbound stanza.
func (p *Pipe) Deliver(n *stanza.Node) {
	p.stanzas <- n
}

// Connect emits a connected lifecycle signal.
func (p *Pipe) Connect() {
	p.signals <- Signal{Kind: SignalConnected}
}

// Disconnect emits a disconnected lifecycle signal.
func (p *Pipe) Disconnect(err error) {
	p.signals <- Signal{Kind: SignalDisconnected, Err: err}
}

// Send implements Transport, recording the stanza.
func (p *Pipe) Send(_ context.Context, n *stanza.Node) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
	return nil
}

// Sent returns a copy of everything sent so far.
func (p *Pipe) Sent() []*stanza.Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*stanza.Node, len(p.sent))
	copy(out, p.sent)
	return out
}

// SentNamed returns sent stanzas whose correlation id carries the given
// purpose.
func (p *Pipe) SentNamed(purpose string) []*stanza.Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*stanza.Node
	for _, n := range p.sent {
		if stanza.Purpose(n.ID()) == purpose {
			out = append(out, n)
		}
	}
	return out
}

// Stanzas implements Transport.
func (p *Pipe) Stanzas() <-chan *stanza.Node { return p.stanzas }

// Signals implements Transport.
func (p *Pipe) Signals() <-chan Signal { return p.signals }

// Close implements Transport.
func (p *Pipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.stanzas)
		close(p.signals)
	}
	return nil
}
