package indicator

// Multi combines multiple Indicator implementations.
type Multi struct {
	indicators []Indicator
}

// NewMulti creates a Multi driving every given indicator.
func NewMulti(indicators ...Indicator) *Multi {
	return &Multi{indicators: indicators}
}

// Idle implements Indicator.Idle.
func (m *Multi) Idle() {
	for _, ind := range m.indicators {
		ind.Idle()
	}
}

// Scanning implements Indicator.Scanning.
func (m *Multi) Scanning() {
	for _, ind := range m.indicators {
		ind.Scanning()
	}
}

// Decoded implements Indicator.Decoded.
func (m *Multi) Decoded(text string) {
	for _, ind := range m.indicators {
		ind.Decoded(text)
	}
}

// Failed implements Indicator.Failed.
func (m *Multi) Failed(reason string) {
	for _, ind := range m.indicators {
		ind.Failed(reason)
	}
}

// ConnectionLost implements Indicator.ConnectionLost.
func (m *Multi) ConnectionLost() {
	for _, ind := range m.indicators {
		ind.ConnectionLost()
	}
}

// Shutdown implements Indicator.Shutdown.
func (m *Multi) Shutdown() {
	for _, ind := range m.indicators {
		ind.Shutdown()
	}
}

// Release implements Indicator.Release.
func (m *Multi) Release() error {
	var lastErr error
	for _, ind := range m.indicators {
		if err := ind.Release(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
