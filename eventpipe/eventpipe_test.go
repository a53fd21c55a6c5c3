package eventpipe

import (
	"bufio"
	"context"
	"strings"
	"testing"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		want    Command
		wantErr bool
	}{
		{"key 1011", Command{Type: CommandKey, Code: 1011}, false},
		{"KEY 30", Command{Type: CommandKey, Code: 30}, false},
		{"key", Command{}, true},
		{"key abc", Command{}, true},
		{"scan", Command{Type: CommandScan}, false},
		{"stop", Command{Type: CommandStop}, false},
		{"trigger on", Command{Type: CommandTrigger, Enabled: true}, false},
		{"trigger OFF", Command{Type: CommandTrigger, Enabled: false}, false},
		{"trigger 1", Command{Type: CommandTrigger, Enabled: true}, false},
		{"trigger maybe", Command{}, true},
		{"trigger", Command{}, true},
		{"rfid 1234", Command{}, true},
		{"   ", Command{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseLine(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLine(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestReadCommands(t *testing.T) {
	input := "# simulated session\nscan\n\nbogus\nkey 42\ntrigger off\n"

	var got []Command
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ep := &EventPipe{
		handler: func(c Command) { got = append(got, c) },
		ctx:     ctx,
		cancel:  cancel,
	}
	ep.readCommands(bufio.NewScanner(strings.NewReader(input)))

	want := []Command{
		{Type: CommandScan},
		{Type: CommandKey, Code: 42},
		{Type: CommandTrigger, Enabled: false},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d commands, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestNew_EmptyPath(t *testing.T) {
	ep, err := New(Config{}, nil)
	if err != nil || ep != nil {
		t.Errorf("New(empty) = %v, %v, want nil, nil", ep, err)
	}
}
