package xmpp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tfreitas/roomsync/internal/stanza"
)

const (
	// Gateway lines can carry large archive payloads.
	maxLineBytes = 4 << 20

	reconnectBase = time.Second
	reconnectMax  = 30 * time.Second
)

// SocketTransport speaks JSON lines over the gateway's unix socket: one
// stanza tree per line, both directions. It dials on Start and keeps
// redialing with backoff until closed.
type SocketTransport struct {
	path   string
	logger *zap.Logger

	mu   sync.Mutex
	conn net.Conn

	// sendMu serializes writers; the sender loop and the dispatch loop
	// share the connection and an interleaved write would break the
	// line framing.
	sendMu sync.Mutex

	stanzas   chan *stanza.Node
	signals   chan Signal
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSocketTransport creates a transport for the gateway socket at path.
// Call Start to begin dialing.
func NewSocketTransport(path string, logger *zap.Logger) *SocketTransport {
	return &SocketTransport{
		path:    path,
		logger:  logger,
		stanzas: make(chan *stanza.Node, 64),
		signals: make(chan Signal, 8),
		done:    make(chan struct{}),
	}
}

// Start launches the dial/read loop.
func (t *SocketTransport) Start() {
	t.wg.Add(1)
	go t.run()
}

func (t *SocketTransport) run() {
	defer t.wg.Done()
	defer close(t.stanzas)
	defer close(t.signals)

	backoff := reconnectBase
	for {
		select {
		case <-t.done:
			return
		default:
		}

		conn, err := net.Dial("unix", t.path)
		if err != nil {
			t.logger.Warn("gateway dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-t.done:
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > reconnectMax {
				backoff = reconnectMax
			}
			continue
		}

		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()
		backoff = reconnectBase

		t.signal(Signal{Kind: SignalConnected})
		err = t.readLoop(conn)

		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()
		_ = conn.Close()

		select {
		case <-t.done:
			return
		default:
			t.logger.Warn("gateway connection lost", zap.Error(err))
			t.signal(Signal{Kind: SignalDisconnected, Err: err})
		}
	}
}

func (t *SocketTransport) readLoop(conn net.Conn) error {
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var n stanza.Node
		if err := json.Unmarshal(line, &n); err != nil {
			t.logger.Warn("undecodable gateway line", zap.Error(err))
			continue
		}
		select {
		case t.stanzas <- &n:
		case <-t.done:
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return fmt.Errorf("gateway closed the socket")
}

func (t *SocketTransport) signal(s Signal) {
	select {
	case t.signals <- s:
	case <-t.done:
	}
}

// Send encodes one stanza as a JSON line on the gateway socket.
func (t *SocketTransport) Send(ctx context.Context, n *stanza.Node) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("gateway not connected")
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode stanza: %w", err)
	}
	payload = append(payload, '\n')

	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		defer conn.SetWriteDeadline(time.Time{})
	}
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("write stanza: %w", err)
	}
	return nil
}

// Stanzas implements Transport.
func (t *SocketTransport) Stanzas() <-chan *stanza.Node { return t.stanzas }

// Signals implements Transport.
func (t *SocketTransport) Signals() <-chan Signal { return t.signals }

// Close stops the dial loop and disconnects. Safe to call more than once.
func (t *SocketTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		t.mu.Lock()
		if t.conn != nil {
			_ = t.conn.Close()
		}
		t.mu.Unlock()
		t.wg.Wait()
	})
	return nil
}
