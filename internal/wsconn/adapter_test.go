package wsconn

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/paulGUZU/wstunnel/internal/protocol"
)

// pipe spins up a real gorilla/websocket client/server pair over a local
// httptest server and returns both ends wrapped as Adapters.
func pipe(t *testing.T) (client *Adapter, server *Adapter, closeFn func()) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srvCh := make(chan *websocket.Conn, 1)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		srvCh <- conn
	}))

	wsURL := "ws" + ts.URL[len("http"):]
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	var serverConn *websocket.Conn
	select {
	case serverConn = <-srvCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server upgrade")
	}

	return New(clientConn), New(serverConn), func() {
		clientConn.Close()
		serverConn.Close()
		ts.Close()
	}
}

func TestAdapterDataRoundTrip(t *testing.T) {
	client, server, closeFn := pipe(t)
	defer closeFn()

	want := []byte("hello tunnel")
	if _, err := client.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := make([]byte, len(want))
	if _, err := io.ReadFull(server, got); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAdapterShutdownSendsCloseNotSocketClose(t *testing.T) {
	client, server, closeFn := pipe(t)
	defer closeFn()

	payload := []byte("last data before shutdown")
	if _, err := client.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := client.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	got := make([]byte, len(payload))
	if _, err := io.ReadFull(server, got); err != nil {
		t.Fatalf("ReadFull data: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("data mismatch: got %q want %q", got, payload)
	}

	n, err := server.Read(make([]byte, 16))
	if err != io.EOF {
		t.Fatalf("expected io.EOF after Close packet, got n=%d err=%v", n, err)
	}

	// The underlying WebSocket connection must still be usable: the server
	// side can write back over it, proving Shutdown did not close the socket.
	if _, err := server.Write([]byte("still alive")); err != nil {
		t.Fatalf("server write after client shutdown should succeed: %v", err)
	}
}

func TestAdapterConnectRoundTrip(t *testing.T) {
	client, server, closeFn := pipe(t)
	defer closeFn()

	addr := protocol.NewDomainAddr("example.com", 443)
	if err := client.SendConnect(addr); err != nil {
		t.Fatalf("SendConnect: %v", err)
	}

	got, err := server.ReadConnect()
	if err != nil {
		t.Fatalf("ReadConnect: %v", err)
	}
	if got.Name != "example.com" || got.Port != 443 {
		t.Fatalf("got %+v", got)
	}
}

func TestAdapterReadConnectRejectsDataFirst(t *testing.T) {
	client, server, closeFn := pipe(t)
	defer closeFn()

	if _, err := client.Write([]byte("not a connect")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := server.ReadConnect(); err == nil {
		t.Fatal("expected error reading Data packet as Connect")
	}
}

func TestAdapterResidueAcrossSmallReads(t *testing.T) {
	client, server, closeFn := pipe(t)
	defer closeFn()

	want := []byte("0123456789abcdef")
	if _, err := client.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var got []byte
	buf := make([]byte, 3)
	for len(got) < len(want) {
		n, err := server.Read(buf)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}
