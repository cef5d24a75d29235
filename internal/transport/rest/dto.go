package rest

import (
	"time"

	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	"github.com/google/uuid"
)

type createEventRequest struct {
	Title           string `json:"title" validate:"required,min=3,max=200"`
	Type            string `json:"type" validate:"required,min=2,max=50"`
	Description     string `json:"description" validate:"required,min=10,max=5000"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Location        string `json:"location" validate:"required,min=3,max=200"`
	Image           string `json:"image" validate:"omitempty,url"`
	MinParticipants *int   `json:"minParticipants" validate:"omitempty,min=1"`
	MaxParticipants int    `json:"maxParticipants" validate:"required,min=1"`
	JoiningFee      *int   `json:"joiningFee" validate:"omitempty,min=0"`
}

func (req createEventRequest) toInput() domain.NewEventInput {
	// already checked by the datetime tag
	date, _ := time.Parse(time.RFC3339, req.Date)
	in := domain.NewEventInput{
		Title:           req.Title,
		Type:            req.Type,
		Description:     req.Description,
		Location:        req.Location,
		Image:           req.Image,
		Date:            date,
		MaxParticipants: req.MaxParticipants,
	}
	if req.MinParticipants != nil {
		in.MinParticipants = *req.MinParticipants
	}
	if req.JoiningFee != nil {
		in.JoiningFee = *req.JoiningFee
	}
	return in
}

type updateEventRequest struct {
	Title           *string `json:"title" validate:"omitempty,min=3,max=200"`
	Type            *string `json:"type" validate:"omitempty,min=2,max=50"`
	Description     *string `json:"description" validate:"omitempty,min=10,max=5000"`
	Date            *string `json:"date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Location        *string `json:"location" validate:"omitempty,min=3,max=200"`
	Image           *string `json:"image" validate:"omitempty,url"`
	MinParticipants *int    `json:"minParticipants" validate:"omitempty,min=1"`
	MaxParticipants *int    `json:"maxParticipants" validate:"omitempty,min=1"`
	JoiningFee      *int    `json:"joiningFee" validate:"omitempty,min=0"`
	Status          *string `json:"status" validate:"omitempty,oneof=OPEN FULL CANCELLED COMPLETED"`
}

func (req updateEventRequest) toPatch() domain.EventPatch {
	p := domain.EventPatch{
		Title:           req.Title,
		Type:            req.Type,
		Description:     req.Description,
		Location:        req.Location,
		Image:           req.Image,
		MinParticipants: req.MinParticipants,
		MaxParticipants: req.MaxParticipants,
		JoiningFee:      req.JoiningFee,
	}
	if req.Date != nil {
		d, _ := time.Parse(time.RFC3339, *req.Date)
		p.Date = &d
	}
	if req.Status != nil {
		st := domain.EventStatus(*req.Status)
		p.Status = &st
	}
	return p
}

type eventResponse struct {
	ID              uuid.UUID `json:"id"`
	HostID          uuid.UUID `json:"hostId"`
	Title           string    `json:"title"`
	Type            string    `json:"type"`
	Description     string    `json:"description"`
	Location        string    `json:"location"`
	Image           string    `json:"image,omitempty"`
	Date            time.Time `json:"date"`
	MinParticipants int       `json:"minParticipants"`
	MaxParticipants int       `json:"maxParticipants"`
	JoiningFee      int       `json:"joiningFee"`
	Status          string    `json:"status"`
	EnrolledCount   int       `json:"enrolledCount"`
	IsFull          bool      `json:"isFull"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func toEventResponse(e domain.Event) eventResponse {
	return eventResponse{
		ID:              e.ID,
		HostID:          e.HostID,
		Title:           e.Title,
		Type:            e.Type,
		Description:     e.Description,
		Location:        e.Location,
		Image:           e.Image,
		Date:            e.Date,
		MinParticipants: e.MinParticipants,
		MaxParticipants: e.MaxParticipants,
		JoiningFee:      e.JoiningFee,
		Status:          string(e.Status),
		EnrolledCount:   e.EnrolledCount,
		IsFull:          e.IsFull(),
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

type enrollmentResponse struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"userId"`
	EventID       uuid.UUID `json:"eventId"`
	PaymentStatus string    `json:"paymentStatus"`
	JoinedAt      time.Time `json:"joinedAt"`
}

func toEnrollmentResponse(e domain.Enrollment) enrollmentResponse {
	return enrollmentResponse{
		ID:            e.ID,
		UserID:        e.UserID,
		EventID:       e.EventID,
		PaymentStatus: string(e.PaymentStatus),
		JoinedAt:      e.JoinedAt,
	}
}

func toEnrollmentList(items []domain.Enrollment) []enrollmentResponse {
	out := make([]enrollmentResponse, 0, len(items))
	for _, e := range items {
		out = append(out, toEnrollmentResponse(e))
	}
	return out
}

type intentResponse struct {
	ID        uuid.UUID `json:"id"`
	Status    string    `json:"status"`
	Amount    int       `json:"amount"`
	Currency  string    `json:"currency"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func toIntentResponse(p domain.PaymentIntent) intentResponse {
	return intentResponse{
		ID:        p.ID,
		Status:    string(p.Status),
		Amount:    p.Amount,
		Currency:  p.Currency,
		ExpiresAt: p.ExpiresAt,
	}
}
