package mqtt

import (
	"sync"

	"github.com/sweeney/flow-sensor/internal/report"
)

// FakePublisher records what would have been sent to the broker. Exported
// fields may be read directly once the code under test has stopped
// publishing; while it is still running use the accessor methods.
type FakePublisher struct {
	mu sync.Mutex

	// Readings and Payloads hold every accepted reading and its JSON.
	Readings []report.Reading
	Payloads [][]byte

	// SystemEvents and SystemPayloads hold every accepted system event and
	// its JSON.
	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// PublishError and PublishSystemError, if set, fail the matching call
	// without recording anything.
	PublishError       error
	PublishSystemError error

	Closed    bool
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish formats and records the reading.
func (f *FakePublisher) Publish(reading report.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(reading)
	if err != nil {
		return err
	}
	f.Readings = append(f.Readings, reading)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem formats and records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// ReadingsFor returns the recorded readings of one meter, oldest first.
func (f *FakePublisher) ReadingsFor(meter string) []report.Reading {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []report.Reading
	for _, r := range f.Readings {
		if r.Meter == meter {
			out = append(out, r)
		}
	}
	return out
}

// Events returns the names of the recorded system events in order.
func (f *FakePublisher) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		out[i] = e.Event
	}
	return out
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// IsConnected returns Connected.
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Reset clears everything recorded and any injected errors.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Readings, f.Payloads = nil, nil
	f.SystemEvents, f.SystemPayloads = nil, nil
	f.PublishError, f.PublishSystemError = nil, nil
	f.Closed, f.Connected = false, false
}
