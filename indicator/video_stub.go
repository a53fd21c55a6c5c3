//go:build !screen

package indicator

import (
	"scanbridge/video"
)

// NewVideo returns an error when screen support is not compiled in.
func NewVideo(cfg video.Config) (*VideoIndicator, error) {
	return nil, video.ErrScreenNotCompiled
}

// VideoIndicator is a stub when screen support is not compiled in.
type VideoIndicator struct{}

func (vi *VideoIndicator) Idle()                {}
func (vi *VideoIndicator) Scanning()            {}
func (vi *VideoIndicator) Decoded(text string)  {}
func (vi *VideoIndicator) Failed(reason string) {}
func (vi *VideoIndicator) ConnectionLost()      {}
func (vi *VideoIndicator) Shutdown()            {}
func (vi *VideoIndicator) Release() error       { return nil }
