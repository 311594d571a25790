package demo

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entity states.
const (
	Active   = "ACTIVE"
	Inactive = "INACTIVE"
	Deleted  = "DELETED"
	Unknown  = "UNKNOWN"
)

var states = [...]string{Active, Inactive, Deleted, Unknown}

// Entity is the sample record the demo processors work on.
type Entity struct {
	ID       string    `json:"id"`
	Name     string    `json:"name,omitempty"`
	DateTime time.Time `json:"date_time"`
	Active   string    `json:"active"`
	Values   []string  `json:"values,omitempty"`
}

func (e *Entity) String() string { return e.ID }

// Removed reports whether the entity is deleted or in an unknown state.
func (e *Entity) Removed() bool {
	return e.Active == Deleted || e.Active == Unknown
}

// NewEntity returns an entity with valueCount values, dated valueCount*10s
// before now. Its state cycles through ACTIVE, INACTIVE, DELETED and
// UNKNOWN with valueCount.
func NewEntity(valueCount int, now time.Time) *Entity {
	values := make([]string, valueCount)
	for i := range values {
		values[i] = fmt.Sprintf("VALUE_%d", i)
	}
	return &Entity{
		ID:       uuid.NewString(),
		DateTime: now.Add(-time.Duration(valueCount) * 10 * time.Second),
		Active:   states[valueCount%len(states)],
		Values:   values,
	}
}

// NewEntities returns count entities built with value counts 1..count.
func NewEntities(count int, now time.Time) []*Entity {
	out := make([]*Entity, count)
	for i := range out {
		out[i] = NewEntity(i+1, now)
	}
	return out
}
