package presence

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/alfredjeanlab/corkboard/internal/clock"
	"github.com/alfredjeanlab/corkboard/internal/model"
)

// DefaultReportInterval is the minimum spacing between cursor emissions.
const DefaultReportInterval = 50 * time.Millisecond

// Reporter throttles the local session's cursor reports. Reports arriving
// faster than the interval are dropped, not queued.
type Reporter struct {
	sessionID string
	color     string
	clock     clock.Clock
	limiter   *rate.Limiter
	emit      func(model.Cursor)
}

// NewReporter returns a Reporter for sessionID that passes accepted
// positions to emit. An interval of zero selects DefaultReportInterval.
func NewReporter(sessionID string, interval time.Duration, c clock.Clock, emit func(model.Cursor)) *Reporter {
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	return &Reporter{
		sessionID: sessionID,
		color:     ColorFor(sessionID),
		clock:     clock.OrReal(c),
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
		emit:      emit,
	}
}

// Report offers a new position. It reports whether the position was emitted.
func (r *Reporter) Report(x, y float64) bool {
	if !r.limiter.AllowN(r.clock.Now(), 1) {
		return false
	}
	r.emit(model.Cursor{SessionID: r.sessionID, X: x, Y: y, Color: r.color})
	return true
}

// Color returns the reporter's session color.
func (r *Reporter) Color() string { return r.color }
