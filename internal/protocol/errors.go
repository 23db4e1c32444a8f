// Package protocol implements the wire codec shared by the SOCKS5 front end
// and the tunnel: the Addr address variant and the Packet tunnel frame.
package protocol

import "errors"

// Protocol-level error kinds. Callers compare with errors.Is.
var (
	ErrUnsupportedSocksVersion = errors.New("protocol: unsupported SOCKS version")
	ErrUnsupportedMethod       = errors.New("protocol: no acceptable SOCKS5 auth method")
	ErrUnsupportedCommand      = errors.New("protocol: unsupported SOCKS5 command")
	ErrUnsupportedAddrType     = errors.New("protocol: unsupported address type")
	ErrInvalidRepCode          = errors.New("protocol: invalid SOCKS5 reply code")
	ErrInvalidDomain           = errors.New("protocol: invalid UTF-8 or oversized domain name")

	ErrPacketNotBinaryMessage = errors.New("protocol: websocket message is not binary")
	ErrInvalidPacketTag       = errors.New("protocol: unrecognized tunnel packet tag")
	ErrShortPacket            = errors.New("protocol: packet too short to decode")
)
