package xmpp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tfreitas/roomsync/internal/stanza"
)

func TestSocketCloseIsIdempotent(t *testing.T) {
	tr := NewSocketTransport(filepath.Join(t.TempDir(), "gw.sock"), zap.NewNop())

	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestConcurrentSendsKeepLineFraming(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gw.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	const senders = 8
	lines := make(chan []byte, senders)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		sc := bufio.NewScanner(conn)
		sc.Buffer(make([]byte, 64*1024), maxLineBytes)
		for i := 0; i < senders && sc.Scan(); i++ {
			line := make([]byte, len(sc.Bytes()))
			copy(line, sc.Bytes())
			lines <- line
		}
		close(lines)
	}()

	tr := NewSocketTransport(path, zap.NewNop())
	tr.Start()
	defer tr.Close()

	select {
	case sig := <-tr.Signals():
		if sig.Kind != SignalConnected {
			t.Fatalf("signal = %v, want connected", sig.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("transport never connected")
	}

	// Payloads large enough that an unserialized write would interleave.
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n := &stanza.Node{
				Name:  "message",
				Attrs: map[string]string{"id": fmt.Sprintf("sendMessage:%d", i)},
				Children: []*stanza.Node{
					{Name: "body", Text: strings.Repeat("x", 256*1024)},
				},
			}
			if err := tr.Send(context.Background(), n); err != nil {
				t.Errorf("send %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got := 0
	deadline := time.After(5 * time.Second)
	for got < senders {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("reader stopped after %d lines, want %d", got, senders)
			}
			var n stanza.Node
			if err := json.Unmarshal(line, &n); err != nil {
				t.Fatalf("line %d is not one well-formed stanza: %v", got, err)
			}
			if n.Name != "message" || n.Child("body") == nil {
				t.Fatalf("line %d decoded to %+v", got, n.Name)
			}
			got++
		case <-deadline:
			t.Fatalf("read %d lines, want %d", got, senders)
		}
	}
}
