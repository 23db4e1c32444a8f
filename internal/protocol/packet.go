package protocol

import "github.com/gorilla/websocket"

// PacketTag identifies the variant of a tunnel frame; it is always the first
// byte of the WebSocket binary message that carries the packet.
type PacketTag byte

const (
	TagConnect PacketTag = 0x01
	TagData    PacketTag = 0x02
	TagClose   PacketTag = 0x03
)

// Packet is a single tunnel frame: exactly one WebSocket binary message.
//
//   Connect(Addr)  -- first byte 0x01, opens a logical stream at addr.
//   Data([]byte)   -- first byte 0x02, opaque payload.
//   Close          -- first byte 0x03, ends the logical stream.
type Packet struct {
	Tag  PacketTag
	Addr Addr   // valid when Tag == TagConnect
	Data []byte // valid when Tag == TagData
}

// Connect builds a Connect packet for addr.
func Connect(addr Addr) Packet { return Packet{Tag: TagConnect, Addr: addr} }

// DataPacket builds a Data packet carrying payload. payload is not copied.
func DataPacket(payload []byte) Packet { return Packet{Tag: TagData, Data: payload} }

// ClosePacket builds a Close packet.
func ClosePacket() Packet { return Packet{Tag: TagClose} }

// Encode renders a Packet as the bytes of a WebSocket binary message.
func (p Packet) Encode() ([]byte, error) {
	switch p.Tag {
	case TagConnect:
		body, err := p.Addr.EncodeConnectAddr()
		if err != nil {
			return nil, err
		}
		out := make([]byte, 0, 1+len(body))
		out = append(out, byte(TagConnect))
		return append(out, body...), nil
	case TagData:
		out := make([]byte, 0, 1+len(p.Data))
		out = append(out, byte(TagData))
		return append(out, p.Data...), nil
	case TagClose:
		return []byte{byte(TagClose)}, nil
	default:
		return nil, ErrInvalidPacketTag
	}
}

// DecodePacket parses a WebSocket message (messageType, payload, as returned
// by *websocket.Conn.ReadMessage) into a Packet. Text messages are a
// protocol violation.
func DecodePacket(messageType int, payload []byte) (Packet, error) {
	if messageType != websocket.BinaryMessage {
		return Packet{}, ErrPacketNotBinaryMessage
	}
	if len(payload) == 0 {
		return Packet{}, ErrShortPacket
	}

	switch PacketTag(payload[0]) {
	case TagConnect:
		addr, err := DecodeConnectAddr(payload[1:])
		if err != nil {
			return Packet{}, err
		}
		return Connect(addr), nil
	case TagData:
		return DataPacket(payload[1:]), nil
	case TagClose:
		return ClosePacket(), nil
	default:
		return Packet{}, ErrInvalidPacketTag
	}
}
