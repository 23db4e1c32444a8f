package copyio

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/paulGUZU/wstunnel/internal/wsconn"
)

// wsPipe mirrors wsconn's own test helper: a real gorilla/websocket
// connection pair over a local httptest server.
func wsPipe(t *testing.T) (client *wsconn.Adapter, server *wsconn.Adapter, closeFn func()) {
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

	return wsconn.New(clientConn), wsconn.New(serverConn), func() {
		clientConn.Close()
		serverConn.Close()
		ts.Close()
	}
}

// TestDuplexCopiesBothDirectionsAndShutsDownOnTCPEOF wires Duplex between a
// local net.Pipe (standing in for the inbound SOCKS5/upstream TCP) and a
// real WebSocket adapter pair, driving the far adapter end by hand to
// observe both the data flow and the Close-on-EOF shutdown path.
func TestDuplexCopiesBothDirectionsAndShutsDownOnTCPEOF(t *testing.T) {
	localTCP, peerTCP := net.Pipe()
	wsNear, wsFar, closeWS := wsPipe(t)
	defer closeWS()

	done := make(chan struct {
		stats Stats
		err   error
	}, 1)
	go func() {
		stats, err := Duplex(localTCP, wsNear)
		done <- struct {
			stats Stats
			err   error
		}{stats, err}
	}()

	outbound := []byte("hello upstream")
	go func() {
		_, _ = peerTCP.Write(outbound)
	}()

	gotOutbound := make([]byte, len(outbound))
	if _, err := io.ReadFull(wsFar, gotOutbound); err != nil {
		t.Fatalf("far side did not receive outbound data: %v", err)
	}
	if string(gotOutbound) != string(outbound) {
		t.Fatalf("outbound mismatch: got %q want %q", gotOutbound, outbound)
	}

	inbound := []byte("hello downstream")
	if _, err := wsFar.Write(inbound); err != nil {
		t.Fatalf("far side write: %v", err)
	}
	gotInbound := make([]byte, len(inbound))
	readDone := make(chan error, 1)
	go func() {
		_, err := io.ReadFull(peerTCP, gotInbound)
		readDone <- err
	}()
	select {
	case err := <-readDone:
		if err != nil {
			t.Fatalf("peerTCP did not receive inbound data: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound data")
	}
	if string(gotInbound) != string(inbound) {
		t.Fatalf("inbound mismatch: got %q want %q", gotInbound, inbound)
	}

	// Closing the peer TCP end drives localTCP to EOF, which Duplex must
	// translate into a Close packet on the WebSocket side.
	peerTCP.Close()

	farReadDone := make(chan error, 1)
	go func() {
		_, err := wsFar.Read(make([]byte, 16))
		farReadDone <- err
	}()
	select {
	case err := <-farReadDone:
		if err != io.EOF {
			t.Fatalf("expected io.EOF on far side after peer close, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for far side EOF")
	}

	// The far side answers in kind so the tunnel->TCP half of Duplex also
	// observes a clean end and the whole splice can complete.
	if err := wsFar.Shutdown(); err != nil {
		t.Fatalf("wsFar.Shutdown: %v", err)
	}

	select {
	case result := <-done:
		if result.err != nil {
			t.Fatalf("Duplex returned error: %v", result.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Duplex did not complete")
	}
}
