// Package xmpp connects the sync core to an XMPP gateway process. The
// gateway owns the wire: TLS, SASL and XML framing happen there. This
// package speaks parsed stanza trees over a local socket and turns them
// into state changes.
package xmpp

import (
	"context"

	"github.com/tfreitas/roomsync/internal/stanza"
)

// SignalKind is a transport lifecycle notice.
type SignalKind int

const (
	// SignalConnected fires when the gateway session is established and
	// stanzas can be sent.
	SignalConnected SignalKind = iota
	// SignalDisconnected fires when the gateway session drops. The
	// transport keeps retrying until closed.
	SignalDisconnected
)

// Signal is a lifecycle notice emitted alongside the stanza stream.
type Signal struct {
	Kind SignalKind
	Err  error
}

// Transport delivers parsed stanzas from the gateway and accepts outbound
// ones. Implementations guarantee Stanzas delivers in wire order, one at a
// time; dispatch concurrency is the consumer's decision, not the
// transport's.
type Transport interface {
	// Send writes one stanza to the gateway.
	Send(ctx context.Context, n *stanza.Node) error
	// Stanzas is the inbound stream. Closed when the transport is closed.
	Stanzas() <-chan *stanza.Node
	// Signals carries lifecycle notices. Closed when the transport is
	// closed.
	Signals() <-chan Signal
	// Close tears the transport down and closes both channels.
	Close() error
}
