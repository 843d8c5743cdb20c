package models

import "time"

// PullState tracks the last successful pull per property
type PullState struct {
	PropertyID   string     `json:"propertyId"`
	LastPulledAt *time.Time `json:"lastPulledAt,omitempty"`
	PullCount    int        `json:"pullCount"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// NewPullState creates a PullState for a property that was never pulled
func NewPullState(propertyID string) *PullState {
	now := time.Now().UTC()
	return &PullState{
		PropertyID: propertyID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
