package clock

import "time"

// Clock abstracts the time source so expiry and return-window rules can be
// tested against an arbitrary "now" without real delays.
type Clock interface {
	Now() time.Time
}

// System is the real wall clock
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed always returns the same instant. Test helper.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }
