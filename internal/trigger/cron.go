// Package trigger decides when a reconciliation run happens.
package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Event is one request to run.
type Event struct {
	Source    string
	Timestamp time.Time
}

// Trigger emits events until its context is cancelled, then closes the channel.
type Trigger interface {
	Name() string
	Start(ctx context.Context) (<-chan Event, error)
}

type Cron struct {
	schedule string
	timezone string
	now      func() time.Time

	mu     sync.Mutex
	cron   *cron.Cron
	events chan Event
}

func NewCron(schedule, timezone string) *Cron {
	return &Cron{
		schedule: schedule,
		timezone: timezone,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (c *Cron) Name() string {
	return "cron"
}

func (c *Cron) Validate() error {
	if c.schedule == "" {
		return fmt.Errorf("cron schedule is required")
	}
	if _, err := cron.ParseStandard(c.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", c.schedule, err)
	}
	if c.timezone != "" {
		if _, err := time.LoadLocation(c.timezone); err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
		}
	}
	return nil
}

// Start schedules the job. A tick that arrives while the previous event is
// still unconsumed is dropped.
func (c *Cron) Start(ctx context.Context) (<-chan Event, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	location := time.UTC
	if c.timezone != "" {
		tz, err := time.LoadLocation(c.timezone)
		if err != nil {
			return nil, err
		}
		location = tz
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil, fmt.Errorf("cron trigger already started")
	}

	events := make(chan Event, 1)
	scheduler := cron.New(cron.WithLocation(location))
	if _, err := scheduler.AddFunc(c.schedule, func() {
		select {
		case events <- Event{Source: c.Name(), Timestamp: c.now()}:
		default:
		}
	}); err != nil {
		return nil, err
	}
	c.cron = scheduler
	c.events = events
	scheduler.Start()

	go func() {
		<-ctx.Done()
		c.Stop()
	}()

	return events, nil
}

// Stop waits for a running job callback to return, then closes the channel.
func (c *Cron) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron == nil {
		return
	}
	<-c.cron.Stop().Done()
	close(c.events)
	c.cron = nil
	c.events = nil
}

// Manual is fired by hand, e.g. from the HTTP server or tests.
type Manual struct {
	events chan Event
}

func NewManual() *Manual {
	return &Manual{events: make(chan Event, 1)}
}

func (m *Manual) Name() string {
	return "manual"
}

func (m *Manual) Start(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-m.events:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Fire queues an event. It reports false when one is already pending.
func (m *Manual) Fire() bool {
	select {
	case m.events <- Event{Source: m.Name(), Timestamp: time.Now().UTC()}:
		return true
	default:
		return false
	}
}
