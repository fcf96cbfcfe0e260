package preview

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smazurov/keylight/internal/color"
	"github.com/smazurov/keylight/internal/render"
)

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(os.Stderr, nil)), Config{})
	hub.Run(context.Background())
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		_ = hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.Clients(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestEncode(t *testing.T) {
	frame := render.Frame{{R: 1, G: 2, B: 3}, color.Black, {R: 255, B: 9}}
	want := []byte{1, 2, 3, 0, 0, 0, 255, 0, 9}
	if got := Encode(frame); !bytes.Equal(got, want) {
		t.Errorf("Encode = %v, want %v", got, want)
	}
}

func TestHub_BroadcastsFrames(t *testing.T) {
	hub, url := newTestHub(t)
	a := dial(t, url)
	b := dial(t, url)
	waitClients(t, hub, 2)

	frame := render.Frame{{R: 10}, {G: 20}, {B: 30}}
	if err := hub.Write(frame); err != nil {
		t.Fatal(err)
	}

	for _, conn := range []*websocket.Conn{a, b} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if kind != websocket.BinaryMessage {
			t.Errorf("message type = %d, want binary", kind)
		}
		if !bytes.Equal(data, Encode(frame)) {
			t.Errorf("payload = %v", data)
		}
	}
}

func TestHub_WriteWithoutClients(t *testing.T) {
	hub, _ := newTestHub(t)
	for i := 0; i < 100; i++ {
		if err := hub.Write(render.Frame{{R: 1}}); err != nil {
			t.Fatal(err)
		}
	}
	if hub.Name() != "preview" {
		t.Errorf("Name = %q", hub.Name())
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)
	waitClients(t, hub, 1)

	_ = conn.Close()
	waitClients(t, hub, 0)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)
	waitClients(t, hub, 1)

	if err := hub.Close(); err != nil {
		t.Fatal(err)
	}
	if hub.Clients() != 0 {
		t.Errorf("clients after Close = %d", hub.Clients())
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected read error after hub close")
	}
	// Second Close is a no-op.
	_ = hub.Close()
}
