// Package wsconn adapts a pooled WebSocket connection to look like a
// byte-oriented duplex stream, so the generic duplex copy in internal/copyio
// can run over it without knowing anything about message framing.
package wsconn

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/paulGUZU/wstunnel/internal/protocol"
)

// ErrUnexpectedConnect is returned from Read when a Connect packet arrives
// on an already-established tunnel — a protocol violation.
var ErrUnexpectedConnect = errors.New("wsconn: unexpected Connect packet on established stream")

// Adapter wraps a *websocket.Conn as a byte stream. Writes are framed as
// Data packets, one WebSocket binary message per Write call. Shutdown sends
// a Close packet instead of closing the underlying connection, so the
// connection can be returned to the pool and reused by the next stream.
type Adapter struct {
	conn *websocket.Conn

	readMu  sync.Mutex
	residue []byte // leftover bytes from a Data message too big for the caller's buffer

	writeMu sync.Mutex
}

// New wraps conn. conn must not be used directly by the caller afterward;
// all reads/writes must go through the Adapter.
func New(conn *websocket.Conn) *Adapter {
	return &Adapter{conn: conn}
}

// Read implements io.Reader. A Data packet's payload is delivered across one
// or more Read calls (the residue buffer holds whatever didn't fit). A Close
// packet yields io.EOF. Anything else is a protocol error.
func (a *Adapter) Read(p []byte) (int, error) {
	a.readMu.Lock()
	defer a.readMu.Unlock()

	if len(a.residue) > 0 {
		n := copy(p, a.residue)
		a.residue = a.residue[n:]
		return n, nil
	}

	for {
		msgType, payload, err := a.conn.ReadMessage()
		if err != nil {
			return 0, fmt.Errorf("wsconn: read message: %w", err)
		}

		pkt, err := protocol.DecodePacket(msgType, payload)
		if err != nil {
			return 0, err
		}

		switch pkt.Tag {
		case protocol.TagData:
			n := copy(p, pkt.Data)
			if n < len(pkt.Data) {
				a.residue = append(a.residue[:0], pkt.Data[n:]...)
			}
			if n == 0 && len(pkt.Data) == 0 {
				continue // empty Data frame, poll again
			}
			return n, nil
		case protocol.TagClose:
			return 0, io.EOF
		case protocol.TagConnect:
			return 0, ErrUnexpectedConnect
		default:
			return 0, protocol.ErrInvalidPacketTag
		}
	}
}

// Write implements io.Writer: one Write call becomes exactly one Data packet
// sent as a single WebSocket binary message.
func (a *Adapter) Write(p []byte) (int, error) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	pkt := protocol.DataPacket(p)
	encoded, err := pkt.Encode()
	if err != nil {
		return 0, err
	}
	if err := a.conn.WriteMessage(websocket.BinaryMessage, encoded); err != nil {
		return 0, fmt.Errorf("wsconn: write message: %w", err)
	}
	return len(p), nil
}

// Shutdown sends a Close packet, ending the logical tunneled stream while
// leaving the underlying WebSocket connection open and returnable to the
// pool. It does not call conn.Close.
func (a *Adapter) Shutdown() error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	encoded, err := protocol.ClosePacket().Encode()
	if err != nil {
		return err
	}
	if err := a.conn.WriteMessage(websocket.BinaryMessage, encoded); err != nil {
		return fmt.Errorf("wsconn: write close packet: %w", err)
	}
	return nil
}

// Flush is a no-op that returns nil; gorilla/websocket writes are
// unbuffered per-message, so there is nothing to flush beyond the
// WriteMessage call already performed by Write.
func (a *Adapter) Flush() error { return nil }

// SendConnect sends the initial Connect packet that opens the logical
// stream. Called once by the client before the duplex copy starts.
func (a *Adapter) SendConnect(addr protocol.Addr) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	encoded, err := protocol.Connect(addr).Encode()
	if err != nil {
		return err
	}
	if err := a.conn.WriteMessage(websocket.BinaryMessage, encoded); err != nil {
		return fmt.Errorf("wsconn: write connect packet: %w", err)
	}
	return nil
}

// ReadConnect reads the first message of a new tunnel and requires it to be
// a Connect packet. Called once by the server before dialing upstream.
func (a *Adapter) ReadConnect() (protocol.Addr, error) {
	a.readMu.Lock()
	defer a.readMu.Unlock()

	msgType, payload, err := a.conn.ReadMessage()
	if err != nil {
		return protocol.Addr{}, fmt.Errorf("wsconn: read connect message: %w", err)
	}
	pkt, err := protocol.DecodePacket(msgType, payload)
	if err != nil {
		return protocol.Addr{}, err
	}
	if pkt.Tag != protocol.TagConnect {
		return protocol.Addr{}, fmt.Errorf("wsconn: first packet is not Connect (tag %d)", pkt.Tag)
	}
	return pkt.Addr, nil
}

// Close closes the underlying WebSocket connection outright. Used on error
// paths, never for a clean end-of-stream (use Shutdown for that).
func (a *Adapter) Close() error {
	return a.conn.Close()
}
