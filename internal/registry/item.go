package registry

import (
	"fmt"

	"github.com/palomafofana/port-watcher/internal/scanner"
)

// Item is a port record prepared for display.
type Item struct {
	Label       string
	Description string
	Tooltip     string
	Port        scanner.Port
}

// NewItem builds the display form of p.
func NewItem(p scanner.Port) Item {
	return Item{
		Label:       fmt.Sprintf("Port %d", p.Port),
		Description: fmt.Sprintf("%s (PID: %d)", p.Process, p.PID),
		Tooltip: fmt.Sprintf("Port: %d\nProtocol: %s\nProcess: %s\nPID: %d",
			p.Port, p.Protocol, p.Process, p.PID),
		Port: p,
	}
}

// Items converts ports to items, preserving order.
func Items(ports []scanner.Port) []Item {
	items := make([]Item, 0, len(ports))
	for _, p := range ports {
		items = append(items, NewItem(p))
	}
	return items
}
