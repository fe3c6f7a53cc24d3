package model

import "time"

// Pick is one completed selection of a picker session.
type Pick struct {
	ID       string
	PickerID string
	Preset   string
	// PickedAt is the composed date, or date and time for timed pickers.
	PickedAt  time.Time
	DateOnly  bool
	CreatedAt time.Time
}
