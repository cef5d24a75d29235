package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventOpen      EventStatus = "OPEN"
	EventFull      EventStatus = "FULL"
	EventCancelled EventStatus = "CANCELLED"
	EventCompleted EventStatus = "COMPLETED"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventOpen, EventFull, EventCancelled, EventCompleted:
		return true
	}
	return false
}

type Event struct {
	ID     uuid.UUID
	HostID uuid.UUID

	Title       string
	Type        string
	Description string
	Location    string
	Image       string
	Date        time.Time

	MinParticipants int
	MaxParticipants int
	// JoiningFee is in whole currency units; 0 means free.
	JoiningFee int

	Status EventStatus

	// EnrolledCount is filled by read paths only; it is never persisted.
	EnrolledCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e Event) IsFree() bool { return e.JoiningFee == 0 }

// IsFull is the computed FULL condition. A stored FULL status is honored too.
func (e Event) IsFull() bool {
	if e.Status == EventFull {
		return true
	}
	return e.MaxParticipants > 0 && e.EnrolledCount >= e.MaxParticipants
}

type NewEventInput struct {
	Title           string
	Type            string
	Description     string
	Location        string
	Image           string
	Date            time.Time
	MinParticipants int
	MaxParticipants int
	JoiningFee      int
}

// NewEvent validates input and returns an OPEN event owned by hostID.
func NewEvent(hostID uuid.UUID, in NewEventInput, now time.Time) (Event, error) {
	if hostID == uuid.Nil {
		return Event{}, ErrValidation("host is required")
	}
	if in.MinParticipants == 0 {
		in.MinParticipants = 1
	}
	e := Event{
		ID:              uuid.New(),
		HostID:          hostID,
		Title:           strings.TrimSpace(in.Title),
		Type:            strings.TrimSpace(in.Type),
		Description:     strings.TrimSpace(in.Description),
		Location:        strings.TrimSpace(in.Location),
		Image:           strings.TrimSpace(in.Image),
		Date:            in.Date.UTC(),
		MinParticipants: in.MinParticipants,
		MaxParticipants: in.MaxParticipants,
		JoiningFee:      in.JoiningFee,
		Status:          EventOpen,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
	if err := e.validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

// EventPatch holds the optional fields of an update; nil means unchanged.
type EventPatch struct {
	Title           *string
	Type            *string
	Description     *string
	Location        *string
	Image           *string
	Date            *time.Time
	MinParticipants *int
	MaxParticipants *int
	JoiningFee      *int
	Status          *EventStatus
}

// ApplyPatch mutates e. A COMPLETED event rejects every write.
func (e *Event) ApplyPatch(p EventPatch, now time.Time) error {
	if e.Status == EventCompleted {
		return ErrEventCompleted
	}

	next := *e
	if p.Title != nil {
		next.Title = strings.TrimSpace(*p.Title)
	}
	if p.Type != nil {
		next.Type = strings.TrimSpace(*p.Type)
	}
	if p.Description != nil {
		next.Description = strings.TrimSpace(*p.Description)
	}
	if p.Location != nil {
		next.Location = strings.TrimSpace(*p.Location)
	}
	if p.Image != nil {
		next.Image = strings.TrimSpace(*p.Image)
	}
	if p.Date != nil {
		next.Date = p.Date.UTC()
	}
	if p.MinParticipants != nil {
		next.MinParticipants = *p.MinParticipants
	}
	if p.MaxParticipants != nil {
		next.MaxParticipants = *p.MaxParticipants
	}
	if p.JoiningFee != nil {
		next.JoiningFee = *p.JoiningFee
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return ErrValidation("status must be one of OPEN, FULL, CANCELLED, COMPLETED")
		}
		next.Status = *p.Status
	}
	if err := next.validate(); err != nil {
		return err
	}

	next.UpdatedAt = now.UTC()
	*e = next
	return nil
}

// CanDelete reports whether the host may still remove the event.
func (e Event) CanDelete() error {
	if e.Status == EventCompleted {
		return ErrEventCompleted
	}
	return nil
}

func (e Event) validate() error {
	switch {
	case len(e.Title) < 3:
		return ErrValidationMeta("invalid event", map[string]string{"title": "must be at least 3 characters"})
	case len(e.Type) < 2:
		return ErrValidationMeta("invalid event", map[string]string{"type": "must be at least 2 characters"})
	case len(e.Description) < 10:
		return ErrValidationMeta("invalid event", map[string]string{"description": "must be at least 10 characters"})
	case len(e.Location) < 3:
		return ErrValidationMeta("invalid event", map[string]string{"location": "must be at least 3 characters"})
	case e.Date.IsZero():
		return ErrValidationMeta("invalid event", map[string]string{"date": "is required"})
	case e.MinParticipants < 1:
		return ErrValidationMeta("invalid event", map[string]string{"minParticipants": "must be >= 1"})
	case e.MaxParticipants < 1:
		return ErrValidationMeta("invalid event", map[string]string{"maxParticipants": "must be >= 1"})
	case e.MinParticipants > e.MaxParticipants:
		return ErrValidation("minimum participants cannot be greater than maximum")
	case e.JoiningFee < 0:
		return ErrValidationMeta("invalid event", map[string]string{"joiningFee": "must be >= 0"})
	}
	return nil
}
