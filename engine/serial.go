package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"

	"scanbridge/trigger"
)

// Serial command framing. Commands are prefixed with SYN; menu commands
// are terminated with '.'.
const (
	cmdSyn         = 0x16
	cmdTriggerOn   = "T\r"
	cmdTriggerOff  = "U\r"
	cmdMenu        = "M\r"
	menuTrigMode   = "TRGMOD%d"
	menuBeep       = "BEPBEP%d"
	menuAIMPrefix  = "PREAIM%d"
	noReadMessage  = "NR"
	defaultBaud    = 115200
	maxLineLength  = 4096
	serialReadWait = 100 * time.Millisecond
)

// ErrTriggerDisabled is returned by SetTriggerOn while the trigger is disabled.
var ErrTriggerDisabled = errors.New("trigger disabled")

// Serial implements Engine for a scan engine attached to a UART.
// Decoded data arrives as CR/LF terminated lines, optionally carrying an
// AIM "]cm" symbology prefix.
type Serial struct {
	device string
	baud   int
	line   trigger.Line

	port *serial.Port
	done chan struct{}
	wg   sync.WaitGroup
	wmu  sync.Mutex // serializes writes to port

	mu            sync.Mutex
	latest        *DecodeResult
	triggeredAt   time.Time
	triggerOn     bool
	triggerEnable bool
	triggerMode   int
	beep          int
	symIDEnable   int
}

// NewSerial creates a serial engine on the given device. line may be nil
// when the engine is triggered by command only.
func NewSerial(device string, baud int, line trigger.Line) *Serial {
	if baud == 0 {
		baud = defaultBaud
	}
	if line == nil {
		line = &trigger.Noop{}
	}
	return &Serial{
		device:        device,
		baud:          baud,
		line:          line,
		triggerEnable: true,
	}
}

// Open implements Engine.Open.
func (s *Serial) Open() error {
	if s.port != nil {
		return nil
	}
	c := &serial.Config{
		Name:        s.device,
		Baud:        s.baud,
		ReadTimeout: serialReadWait,
	}
	port, err := serial.OpenPort(c)
	if err != nil {
		return fmt.Errorf("open serial %s: %w", s.device, err)
	}
	if err := port.Flush(); err != nil {
		log.Printf("Serial engine: flush %s: %v", s.device, err)
	}

	s.port = port
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.readLoop()

	log.Printf("Serial engine opened on %s at %d baud", s.device, s.baud)
	return nil
}

// SetTriggerMode implements Engine.SetTriggerMode.
func (s *Serial) SetTriggerMode(mode int) error {
	if err := s.menu(fmt.Sprintf(menuTrigMode, mode)); err != nil {
		return err
	}
	s.mu.Lock()
	s.triggerMode = mode
	s.mu.Unlock()
	return nil
}

// SetBeepEnable implements Engine.SetBeepEnable.
func (s *Serial) SetBeepEnable(enable int) error {
	if err := s.menu(fmt.Sprintf(menuBeep, enable)); err != nil {
		return err
	}
	s.mu.Lock()
	s.beep = enable
	s.mu.Unlock()
	return nil
}

// SetTriggerOn implements Engine.SetTriggerOn.
func (s *Serial) SetTriggerOn(on int) error {
	s.mu.Lock()
	enabled := s.triggerEnable
	s.mu.Unlock()

	if on != 0 && !enabled {
		return ErrTriggerDisabled
	}

	if err := s.pull(on != 0); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggerOn = on != 0
	if s.triggerOn {
		s.triggeredAt = time.Now()
		s.latest = nil
	}
	return nil
}

func (s *Serial) pull(on bool) error {
	if !trigger.IsNoop(s.line) {
		if on {
			return s.line.Assert()
		}
		return s.line.Deassert()
	}
	if on {
		return s.command(cmdTriggerOn)
	}
	return s.command(cmdTriggerOff)
}

// SetResultSymIDEnable implements Engine.SetResultSymIDEnable.
func (s *Serial) SetResultSymIDEnable(enable int) error {
	s.mu.Lock()
	unchanged := s.symIDEnable == enable
	s.mu.Unlock()
	if unchanged {
		return nil
	}

	if err := s.menu(fmt.Sprintf(menuAIMPrefix, enable)); err != nil {
		return err
	}
	s.mu.Lock()
	s.symIDEnable = enable
	s.mu.Unlock()
	return nil
}

// GetResultSymIDEnable implements Engine.GetResultSymIDEnable.
func (s *Serial) GetResultSymIDEnable() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.symIDEnable, nil
}

// SymGetSymID implements Engine.SymGetSymID.
func (s *Serial) SymGetSymID(symType int) (int, error) {
	sym, ok := LookupType(symType)
	if !ok {
		return 0, fmt.Errorf("unknown symbology type %d", symType)
	}
	return int(sym.SymID), nil
}

// GetResult implements Engine.GetResult.
func (s *Serial) GetResult(res *DecodeResult) error {
	if s.port == nil {
		return errors.New("serial engine not open")
	}
	res.Reset()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest != nil {
		*res = *s.latest
		s.latest = nil
	}
	return nil
}

// SetTriggerEnable implements Engine.SetTriggerEnable.
func (s *Serial) SetTriggerEnable(enable int) error {
	s.mu.Lock()
	s.triggerEnable = enable != 0
	s.mu.Unlock()
	return nil
}

// GetTriggerEnable implements Engine.GetTriggerEnable.
func (s *Serial) GetTriggerEnable() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return boolInt(s.triggerEnable), nil
}

// Close implements Engine.Close.
func (s *Serial) Close() error {
	if s.port == nil {
		return s.line.Release()
	}
	close(s.done)
	err := s.port.Close()
	s.wg.Wait()
	s.port = nil
	if rerr := s.line.Release(); err == nil {
		err = rerr
	}
	return err
}

func (s *Serial) command(cmd string) error {
	if s.port == nil {
		return errors.New("serial engine not open")
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	buf := append([]byte{cmdSyn}, cmd...)
	if _, err := s.port.Write(buf); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

func (s *Serial) menu(body string) error {
	return s.command(cmdMenu + body + ".")
}

func (s *Serial) readLoop() {
	defer s.wg.Done()

	buf := make([]byte, 256)
	var line []byte
	for {
		select {
		case <-s.done:
			return
		default:
		}

		n, err := s.port.Read(buf)
		if err != nil && err != io.EOF {
			select {
			case <-s.done:
				return
			default:
			}
			log.Printf("Serial engine read: %v", err)
			time.Sleep(serialReadWait)
			continue
		}

		for _, b := range buf[:n] {
			if b == '\r' || b == '\n' {
				if len(line) > 0 {
					s.handleLine(line)
					line = line[:0]
				}
				continue
			}
			if len(line) < maxLineLength {
				line = append(line, b)
			}
		}
	}
}

func (s *Serial) handleLine(line []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := parseLine(line, s.symIDEnable != 0)
	if !s.triggeredAt.IsZero() {
		res.DecodeTime = time.Since(s.triggeredAt)
	}
	s.latest = &res
}

// parseLine converts one line received from the engine into a result.
// A no-read message becomes the ReadFail text.
func parseLine(line []byte, aim bool) DecodeResult {
	text := bytes.TrimSpace(line)
	if string(text) == noReadMessage || strings.EqualFold(string(text), ReadFail) {
		data := []byte(ReadFail)
		return DecodeResult{Data: data, DecodeLength: len(data)}
	}

	res := DecodeResult{}
	payload := bytes.Clone(text)
	if aim {
		if sym, mod, p, ok := ParseAIM(text); ok {
			payload = p
			res.SymID = sym.SymID
			res.SymType = sym.Type
			res.SymName = sym.Name
			res.Letter = sym.AIM
			res.Modifier = mod
		}
	}
	res.Data = payload
	res.DecodeLength = len(payload)
	return res
}
