package indicator

// Noop implements Indicator but does nothing.
// Used when no indicators are configured.
type Noop struct{}

// Idle implements Indicator.Idle.
func (n *Noop) Idle() {}

// Scanning implements Indicator.Scanning.
func (n *Noop) Scanning() {}

// Decoded implements Indicator.Decoded.
func (n *Noop) Decoded(text string) {}

// Failed implements Indicator.Failed.
func (n *Noop) Failed(reason string) {}

// ConnectionLost implements Indicator.ConnectionLost.
func (n *Noop) ConnectionLost() {}

// Shutdown implements Indicator.Shutdown.
func (n *Noop) Shutdown() {}

// Release implements Indicator.Release.
func (n *Noop) Release() error {
	return nil
}
