package eventpipe

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// Config holds configuration for the event pipe.
type Config struct {
	Path string `yaml:"path"` // Path to named pipe (e.g., "/tmp/scanbridge-events")
}

// CommandType identifies a pipe command.
type CommandType int

const (
	CommandKey     CommandType = iota // key press with a code
	CommandScan                       // press the scan key
	CommandStop                       // stop the running scan
	CommandTrigger                    // enable or disable the engine trigger
)

// Command is one parsed line from the pipe.
type Command struct {
	Type    CommandType
	Code    int  // CommandKey
	Enabled bool // CommandTrigger
}

// CommandHandler is called when a command is received from the pipe.
type CommandHandler func(Command)

// EventPipe listens for commands on a named pipe.
type EventPipe struct {
	path    string
	handler CommandHandler
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a new EventPipe. Returns nil if path is empty.
func New(cfg Config, handler CommandHandler) (*EventPipe, error) {
	if cfg.Path == "" {
		return nil, nil
	}

	// Remove existing pipe if it exists
	os.Remove(cfg.Path)

	if err := syscall.Mkfifo(cfg.Path, 0666); err != nil {
		return nil, fmt.Errorf("create named pipe %s: %w", cfg.Path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &EventPipe{
		path:    cfg.Path,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins listening for commands on the pipe.
// This should be called as a goroutine.
func (ep *EventPipe) Start() {
	log.Printf("Event pipe listening on %s", ep.path)

	for {
		select {
		case <-ep.ctx.Done():
			return
		default:
		}

		// Blocks until a writer connects
		file, err := os.OpenFile(ep.path, os.O_RDONLY, 0)
		if err != nil {
			if ep.ctx.Err() != nil {
				return
			}
			log.Printf("Event pipe open error: %v", err)
			continue
		}

		ep.readCommands(bufio.NewScanner(file))
		file.Close()
		// Writer closed the pipe, loop back to wait for next writer
	}
}

func (ep *EventPipe) readCommands(scanner *bufio.Scanner) {
	for scanner.Scan() {
		if ep.ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		cmd, err := parseLine(line)
		if err != nil {
			log.Printf("Event pipe parse error: %v", err)
			continue
		}

		if ep.handler != nil {
			ep.handler(cmd)
		}
	}
}

// Close stops the event pipe listener and removes the pipe.
func (ep *EventPipe) Close() error {
	ep.cancel()
	return os.Remove(ep.path)
}

// parseLine parses a command line into a Command.
// Command format:
//
//	key <code>          - Key press with the given code
//	scan                - Scan key press
//	stop                - Stop the running scan
//	trigger <on|off>    - Enable or disable the engine trigger
func parseLine(line string) (Command, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	cmd := strings.ToLower(parts[0])

	switch cmd {
	case "key":
		if len(parts) < 2 {
			return Command{}, fmt.Errorf("key requires a key code")
		}
		code, err := strconv.Atoi(parts[1])
		if err != nil {
			return Command{}, fmt.Errorf("invalid key code: %s", parts[1])
		}
		return Command{Type: CommandKey, Code: code}, nil

	case "scan":
		return Command{Type: CommandScan}, nil

	case "stop":
		return Command{Type: CommandStop}, nil

	case "trigger":
		if len(parts) < 2 {
			return Command{}, fmt.Errorf("trigger requires on or off")
		}
		switch strings.ToLower(parts[1]) {
		case "on", "1", "true":
			return Command{Type: CommandTrigger, Enabled: true}, nil
		case "off", "0", "false":
			return Command{Type: CommandTrigger, Enabled: false}, nil
		default:
			return Command{}, fmt.Errorf("invalid trigger state: %s", parts[1])
		}

	default:
		return Command{}, fmt.Errorf("unknown command: %s", cmd)
	}
}
