//go:build screen

package video

import (
	"encoding/binary"
	"fmt"
	"image"
	"log"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/d21d3q/framebuffer"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

const defaultFont = "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"

// maxTextRunes limits decoded text shown on screen.
const maxTextRunes = 32

// ScreenSupported returns whether screen support is compiled in.
func ScreenSupported() bool {
	return true
}

// Display shows scanner status on a 16 bpp framebuffer.
type Display struct {
	mu sync.Mutex

	dc              *gg.Context
	pixBuffer       []byte
	backBuffer      []byte
	rgbaImage       *image.RGBA
	width           int
	height          int
	lineLengthBytes int
	fontPath        string
	initialized     bool
}

// New opens the framebuffer and creates a Display.
func New(cfg Config) (*Display, error) {
	d := &Display{fontPath: cfg.Font}
	if d.fontPath == "" {
		d.fontPath = defaultFont
	}
	device := cfg.Device
	if device == "" {
		device = "/dev/fb0"
	}
	if err := d.init(device); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Display) init(device string) error {
	fbLowLevel, err := framebuffer.OpenFrameBuffer(device, os.O_RDWR)
	if err != nil {
		return fmt.Errorf("open framebuffer: %w", err)
	}

	varInfo, err := fbLowLevel.VarScreenInfo()
	if err != nil {
		return fmt.Errorf("get variable screen info: %w", err)
	}
	fixedInfo, err := fbLowLevel.FixScreenInfo()
	if err != nil {
		return fmt.Errorf("get fixed screen info: %w", err)
	}

	d.pixBuffer, err = fbLowLevel.Pixels()
	if err != nil {
		return fmt.Errorf("get pixel data: %w", err)
	}

	d.width = int(varInfo.XRes)
	d.height = int(varInfo.YRes)
	d.lineLengthBytes = int(fixedInfo.LineLength)
	d.backBuffer = make([]byte, d.height*d.lineLengthBytes)

	log.Printf("Video: framebuffer %dx%d, %d bpp, stride %d bytes",
		d.width, d.height, varInfo.BitsPerPixel, d.lineLengthBytes)

	d.rgbaImage = image.NewRGBA(image.Rect(0, 0, d.width, d.height))
	d.dc = gg.NewContextForRGBA(d.rgbaImage)
	d.initialized = true

	d.clear()
	return nil
}

func (d *Display) clear() {
	for i := range d.pixBuffer {
		d.pixBuffer[i] = 0
	}
}

// update converts the RGBA canvas to RGB565 and copies it to the framebuffer.
func (d *Display) update() {
	for y := 0; y < d.height; y++ {
		for x := 0; x < d.width; x++ {
			r, g, b, _ := d.rgbaImage.At(x, y).RGBA()
			r5 := uint16(r >> (16 - 5))
			g6 := uint16(g >> (16 - 6))
			b5 := uint16(b >> (16 - 5))
			pixel16 := (r5 << 11) | (g6 << 5) | b5
			fbIdx := (y * d.lineLengthBytes) + (x * 2)
			if fbIdx+1 < len(d.backBuffer) {
				binary.LittleEndian.PutUint16(d.backBuffer[fbIdx:], pixel16)
			}
		}
	}
	copy(d.pixBuffer, d.backBuffer)
}

func (d *Display) setFontSize(size int) {
	if err := d.dc.LoadFontFace(d.fontPath, float64(size)); err != nil {
		log.Printf("Video: failed to load font: %v", err)
		d.dc.SetFontFace(basicfont.Face7x13)
	}
}

func (d *Display) drawCentered(text string, y float64, r, g, b float64) {
	d.dc.SetRGB(r, g, b)
	d.dc.DrawStringAnchored(text, float64(d.width/2), y, 0.5, 0.5)
}

// screen fills the background and draws a title with an optional detail line.
func (d *Display) screen(bg [3]float64, fg [3]float64, title, detail string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return
	}
	d.dc.SetRGB(bg[0], bg[1], bg[2])
	d.dc.DrawRectangle(0, 0, float64(d.width), float64(d.height))
	d.dc.Fill()

	y := float64(d.height / 2)
	if detail != "" {
		y -= 30
	}
	d.setFontSize(64)
	d.drawCentered(title, y, fg[0], fg[1], fg[2])

	if detail != "" {
		d.setFontSize(32)
		d.drawCentered(truncate(detail, maxTextRunes), y+70, fg[0], fg[1], fg[2])
	}
	d.update()
}

// Idle shows the ready screen.
func (d *Display) Idle() {
	d.screen([3]float64{0, 0.5, 0}, [3]float64{1, 1, 1}, "Ready", "")
}

// Scanning shows that a scan is running.
func (d *Display) Scanning() {
	d.screen([3]float64{0.7, 0.7, 0}, [3]float64{0, 0, 0}, "Scanning...", "")
}

// Decoded shows the decoded text.
func (d *Display) Decoded(text string) {
	d.screen([3]float64{0, 0.7, 0}, [3]float64{1, 1, 1}, "Scanned", text)
}

// Failed shows a scan without data.
func (d *Display) Failed(reason string) {
	d.screen([3]float64{0.7, 0, 0}, [3]float64{1, 1, 1}, "No Read", reason)
}

// ConnectionLost shows the connection lost screen.
func (d *Display) ConnectionLost() {
	d.screen([3]float64{0.5, 0.3, 0}, [3]float64{1, 1, 1}, "Connection Lost", "")
}

// Shutdown blanks the screen.
func (d *Display) Shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return
	}
	d.clear()
}

// Release blanks the screen and stops drawing.
func (d *Display) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.clear()
	d.initialized = false
	return nil
}

// Width returns the display width.
func (d *Display) Width() int {
	return d.width
}

// Height returns the display height.
func (d *Display) Height() int {
	return d.height
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
