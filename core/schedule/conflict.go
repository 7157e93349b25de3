package schedule

import "fmt"

// Dimension is the kind of resource a slot is checked against.
type Dimension string

const (
	DimensionTeacher Dimension = "teacher"
	DimensionRoom    Dimension = "room"
	DimensionClass   Dimension = "class"
)

// Resource identifies one resource (a teacher id, a room label or id, a class id).
type Resource struct {
	Dimension Dimension `json:"dimension"`
	Key       string    `json:"key"`
}

// Occupancy is an existing reservation of a resource.
type Occupancy struct {
	ID    string   `json:"id"`
	Slot  TimeSlot `json:"slot"`
	Label string   `json:"label"`
}

type InvalidIntervalError struct {
	Slot TimeSlot
}

func (err InvalidIntervalError) Error() string {
	return fmt.Sprintf("end time (%s) must be after start time (%s)", err.Slot.End, err.Slot.Start)
}

// ConflictError names the existing reservation the candidate collides with.
type ConflictError struct {
	Dimension Dimension
	Resource  Resource
	Conflict  Occupancy
}

func (err ConflictError) Error() string {
	label := err.Conflict.Label
	if label == "" {
		label = err.Conflict.Slot.String()
	}
	return fmt.Sprintf("%s is already busy at this time: %s", err.Dimension, label)
}

// ValidateNoOverlap checks candidate against the existing occupancies of one resource.
// The occupancy whose ID equals self is skipped so that an edited row never conflicts with itself.
func ValidateNoOverlap(existing []Occupancy, candidate TimeSlot, resource Resource, self string) error {
	if err := candidate.Validate(); err != nil {
		return err
	}
	for _, occ := range existing {
		if self != "" && occ.ID == self {
			continue
		}
		if candidate.Overlaps(occ.Slot) {
			return &ConflictError{Dimension: resource.Dimension, Resource: resource, Conflict: occ}
		}
	}
	return nil
}
