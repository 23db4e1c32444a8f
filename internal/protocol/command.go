package protocol

// Command is the SOCKS5 request CMD field. Only Connect is accepted by this
// implementation; Bind and Udp decode successfully but are rejected by the
// caller (the SOCKS5 front end closes the connection without a reply).
type Command byte

const (
	CmdConnect Command = 0x01
	CmdBind    Command = 0x02
	CmdUdp     Command = 0x03
)

// DecodeCommand validates a raw CMD byte.
func DecodeCommand(b byte) (Command, error) {
	switch Command(b) {
	case CmdConnect, CmdBind, CmdUdp:
		return Command(b), nil
	default:
		return 0, ErrUnsupportedCommand
	}
}
