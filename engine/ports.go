package engine

import (
	"fmt"
	"sort"

	bugserial "go.bug.st/serial"
)

// ListPorts returns the serial ports present on the system, for picking
// the engine device.
func ListPorts() ([]string, error) {
	ports, err := bugserial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}
