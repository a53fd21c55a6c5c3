//go:build screen

package indicator

import (
	"scanbridge/video"
)

// VideoIndicator wraps video.Display to implement Indicator.
type VideoIndicator struct {
	d *video.Display
}

// NewVideo creates a new video-based indicator.
func NewVideo(cfg video.Config) (*VideoIndicator, error) {
	d, err := video.New(cfg)
	if err != nil {
		return nil, err
	}
	return &VideoIndicator{d: d}, nil
}

// Idle implements Indicator.Idle.
func (vi *VideoIndicator) Idle() {
	vi.d.Idle()
}

// Scanning implements Indicator.Scanning.
func (vi *VideoIndicator) Scanning() {
	vi.d.Scanning()
}

// Decoded implements Indicator.Decoded.
func (vi *VideoIndicator) Decoded(text string) {
	vi.d.Decoded(text)
}

// Failed implements Indicator.Failed.
func (vi *VideoIndicator) Failed(reason string) {
	vi.d.Failed(reason)
}

// ConnectionLost implements Indicator.ConnectionLost.
func (vi *VideoIndicator) ConnectionLost() {
	vi.d.ConnectionLost()
}

// Shutdown implements Indicator.Shutdown.
func (vi *VideoIndicator) Shutdown() {
	vi.d.Shutdown()
}

// Release implements Indicator.Release.
func (vi *VideoIndicator) Release() error {
	return vi.d.Release()
}
