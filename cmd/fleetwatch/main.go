// fleetwatch is a read-only terminal client for the fleetsim hub.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "Websocket address of the fleetsim hub")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	p := tea.NewProgram(newModel(conn), tea.WithAltScreen())

	go readEvents(conn, p)

	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// envelope mirrors the hub's outbound message wrapper.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readEvents decodes hub events and feeds them into the TUI until the
// connection drops.
func readEvents(conn *websocket.Conn, p *tea.Program) {
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			p.Send(disconnectedMsg{err: err})
			return
		}
		if msg, ok := decodeEvent(env); ok {
			p.Send(msg)
		}
	}
}
