package models

// Snapshot is an owned, read-only set of readings loaded once per request.
// Callers always receive copies so no consumer can reorder it for another.
type Snapshot struct {
	farmID   string
	readings []Reading
}

// NewSnapshot copies readings into a new snapshot
func NewSnapshot(farmID string, readings []Reading) Snapshot {
	owned := make([]Reading, len(readings))
	copy(owned, readings)
	return Snapshot{farmID: farmID, readings: owned}
}

// FarmID returns the farm the snapshot belongs to
func (s Snapshot) FarmID() string {
	return s.farmID
}

// Len returns the number of readings
func (s Snapshot) Len() int {
	return len(s.readings)
}

// Readings returns a copy of the readings in load order
func (s Snapshot) Readings() []Reading {
	out := make([]Reading, len(s.readings))
	copy(out, s.readings)
	return out
}
