package market

import "time"

const (
	StatusLive   = "Live Trading Session"
	StatusClosed = "Market Closed"

	sessionOpen  = 900
	sessionClose = 1530
)

// IST is India Standard Time. A fixed zone is used so the clock does not
// depend on the host tzdata.
var IST = time.FixedZone("IST", 5*60*60+30*60)

// IsMarketOpen reports whether the NSE cash session is open at t.
// The session runs Monday to Friday, 09:00 to 15:30 IST inclusive.
// Exchange holidays are not modelled.
func IsMarketOpen(t time.Time) bool {
	ist := t.In(IST)
	if wd := ist.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	hhmm := ist.Hour()*100 + ist.Minute()
	return hhmm >= sessionOpen && hhmm <= sessionClose
}

// SessionStatus returns the display string for the session state at t
func SessionStatus(t time.Time) string {
	if IsMarketOpen(t) {
		return StatusLive
	}
	return StatusClosed
}

// SessionClock answers session questions against an injectable time source
type SessionClock struct {
	now func() time.Time
}

// NewSessionClock creates a clock. A nil now uses time.Now.
func NewSessionClock(now func() time.Time) *SessionClock {
	if now == nil {
		now = time.Now
	}
	return &SessionClock{now: now}
}

// Now returns the current time in IST
func (c *SessionClock) Now() time.Time {
	return c.now().In(IST)
}

// IsOpen reports whether the market is open now
func (c *SessionClock) IsOpen() bool {
	return IsMarketOpen(c.now())
}

// Status returns the session status string for now
func (c *SessionClock) Status() string {
	return SessionStatus(c.now())
}
