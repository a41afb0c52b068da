package valuation

import "equity-screener/internal/domain"

// reason identifies what triggered a confidence downgrade. Later values
// take precedence when picking the note shown to the user.
type reason int

const (
	reasonRoute reason = iota
	reasonHistory
	reasonProxy
	reasonBlend
	reasonFloor
	reasonEarnings
	reasonPriceCap
	reasonAnalystCap
)

type downgrade struct {
	level  domain.Confidence
	reason reason
	note   string
}

// assessment collects downgrade events for one valuation. The resolved
// level and note depend only on the set of events, not their order.
type assessment struct {
	events []downgrade
}

func (a *assessment) add(level domain.Confidence, r reason, note string) {
	a.events = append(a.events, downgrade{level: level, reason: r, note: note})
}

// level returns the most severe level recorded, High when there are none.
func (a *assessment) level() domain.Confidence {
	out := domain.ConfidenceHigh
	for _, ev := range a.events {
		if ev.level.Severity() > out.Severity() {
			out = ev.level
		}
	}
	return out
}

// note returns the note of the highest-priority event that carries one.
func (a *assessment) note() string {
	best := reason(-1)
	note := ""
	for _, ev := range a.events {
		if ev.note == "" || ev.reason < best {
			continue
		}
		if ev.reason == best && note != "" {
			continue
		}
		best = ev.reason
		note = ev.note
	}
	return note
}
