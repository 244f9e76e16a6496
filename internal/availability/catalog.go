package availability

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/table-reservations/internal/model"
)

// DefaultSlots is the evening service used when nothing is configured:
// 17:00 to 22:30 in half-hour steps.
var DefaultSlots = []string{
	"17:00", "17:30", "18:00", "18:30", "19:00", "19:30",
	"20:00", "20:30", "21:00", "21:30", "22:00", "22:30",
}

// Catalog is the ordered list of bookable start times for a service day.
// It is immutable once built and safe for concurrent use.
type Catalog struct {
	slots []string
	index map[string]int
}

// NewCatalog validates and stores the given slots. Every entry must be a
// HH:MM time and the list must be strictly ascending. Entries are stored
// zero-padded, so "9:30" becomes "09:30".
func NewCatalog(slots []string) (*Catalog, error) {
	if len(slots) == 0 {
		return nil, errors.New("slot catalog is empty")
	}
	c := &Catalog{
		slots: make([]string, 0, len(slots)),
		index: make(map[string]int, len(slots)),
	}
	var prev time.Time
	for i, raw := range slots {
		s := strings.TrimSpace(raw)
		t, err := time.Parse(model.TimeLayout, s)
		if err != nil {
			return nil, fmt.Errorf("slot %q: expected HH:MM", raw)
		}
		if i > 0 && !t.After(prev) {
			return nil, fmt.Errorf("slot %q is not after %q", s, c.slots[i-1])
		}
		prev = t
		s = t.Format(model.TimeLayout)
		c.index[s] = len(c.slots)
		c.slots = append(c.slots, s)
	}
	return c, nil
}

// DefaultCatalog returns the catalog built from DefaultSlots.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultSlots)
	if err != nil {
		panic(err)
	}
	return c
}

// GenerateSlots produces start times from start to end inclusive, every step.
func GenerateSlots(start, end string, step time.Duration) ([]string, error) {
	if step < time.Minute {
		return nil, fmt.Errorf("slot interval %s is shorter than a minute", step)
	}
	from, err := time.Parse(model.TimeLayout, strings.TrimSpace(start))
	if err != nil {
		return nil, fmt.Errorf("service start %q: expected HH:MM", start)
	}
	to, err := time.Parse(model.TimeLayout, strings.TrimSpace(end))
	if err != nil {
		return nil, fmt.Errorf("service end %q: expected HH:MM", end)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("service end %s is before start %s", end, start)
	}
	var out []string
	for t := from; !t.After(to); t = t.Add(step) {
		out = append(out, t.Format(model.TimeLayout))
	}
	return out, nil
}

// Slots returns a copy of the catalog in order.
func (c *Catalog) Slots() []string {
	out := make([]string, len(c.slots))
	copy(out, c.slots)
	return out
}

// Contains reports whether slot is bookable.
func (c *Catalog) Contains(slot string) bool {
	_, ok := c.index[slot]
	return ok
}

// Len returns the number of slots.
func (c *Catalog) Len() int { return len(c.slots) }
