package testfixtures

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/unilocal/internal/scheduler"
)

// Clock is a settable time source shared by services under test.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock starts at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc exposes Now for constructor injection.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// AtWeekday moves the clock to hour:minute on day of the current week
// (Monday based) in the clock's zone.
func (c *Clock) AtWeekday(day scheduler.Day, hour, minute int) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	monday := now.AddDate(0, 0, -int(scheduler.DayOf(now.Weekday())-scheduler.Monday))
	c.current = time.Date(monday.Year(), monday.Month(), monday.Day()+int(day-scheduler.Monday), hour, minute, 0, 0, now.Location())
	return c.current
}

// IDGenerator hands out readable sequential ids per prefix, e.g. place-001.
type IDGenerator struct {
	mu       sync.Mutex
	counters map[string]int
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{counters: make(map[string]int)}
}

// Next returns the next id for prefix.
func (g *IDGenerator) Next(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[prefix]++
	return fmt.Sprintf("%s-%03d", prefix, g.counters[prefix])
}

// Func binds prefix for constructor injection.
func (g *IDGenerator) Func(prefix string) func() string {
	return func() string { return g.Next(prefix) }
}
