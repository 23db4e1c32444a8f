package banner

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
)

func Print(role string) {
	art := `
██╗    ██╗███████╗████████╗██╗   ██╗███╗   ██╗███╗   ██╗███████╗██╗
██║    ██║██╔════╝╚══██╔══╝██║   ██║████╗  ██║████╗  ██║██╔════╝██║
██║ █╗ ██║███████╗   ██║   ██║   ██║██╔██╗ ██║██╔██╗ ██║█████╗  ██║
██║███╗██║╚════██║   ██║   ██║   ██║██║╚██╗██║██║╚██╗██║██╔══╝  ██║
╚███╔███╔╝███████║   ██║   ╚██████╔╝██║ ╚████║██║ ╚████║███████╗███████╗
 ╚══╝╚══╝ ╚══════╝   ╚═╝    ╚═════╝ ╚═╝  ╚═══╝╚═╝  ╚═══╝╚══════╝╚══════╝
`
	c := color.New(color.FgCyan, color.Bold)
	c.Println(art)

	fmt.Printf("   %s :: SOCKS5-over-WebSocket Tunnel\n", role)
	fmt.Printf("   Start Time: %s\n", time.Now().Format(time.RFC1123))
	fmt.Println(strings.Repeat("-", 50))
}

func PrintClientStatus(listenAddr, proxyAddr string) {
	color.Green("✓ Client Started Successfully")
	fmt.Printf("   • Mode:        Client\n")
	fmt.Printf("   • Listening:   %s (SOCKS5)\n", listenAddr)
	fmt.Printf("   • Server:      wss://%s/\n", proxyAddr)
	fmt.Println(strings.Repeat("-", 50))
}

func PrintServerStatus(listenAddr string) {
	color.Green("✓ Server Started Successfully")
	fmt.Printf("   • Mode:        Server\n")
	fmt.Printf("   • Listening:   %s (TLS)\n", listenAddr)
	fmt.Println(strings.Repeat("-", 50))
}
