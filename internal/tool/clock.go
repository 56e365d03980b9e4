package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// CurrentTime reports the wall clock in the assistant's timezone.
type CurrentTime struct {
	loc *time.Location
	now func() time.Time
}

// NewCurrentTime creates the clock tool. A nil now uses time.Now.
func NewCurrentTime(loc *time.Location, now func() time.Time) *CurrentTime {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &CurrentTime{loc: loc, now: now}
}

func (t *CurrentTime) Name() string {
	return "current_time"
}

func (t *CurrentTime) Category() Category {
	return CategoryUtility
}

func (t *CurrentTime) Description() string {
	return "Get the current date, time and weekday."
}

func (t *CurrentTime) Schema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *CurrentTime) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	now := t.now().In(t.loc)
	return &Result{Content: fmt.Sprintf("%s (%s, %s)",
		now.Format("2006-01-02 15:04:05"), now.Weekday(), now.Format("MST -07:00"))}, nil
}
