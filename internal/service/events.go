package service

import (
	"context"
	"time"

	"github.com/baechuer/real-time-ressys/booking-service/internal/audit"
	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	"github.com/baechuer/real-time-ressys/booking-service/internal/security"
	"github.com/google/uuid"
)

type EventService struct {
	catalog domain.EventCatalog
	audit   *audit.Logger
	now     func() time.Time
}

func NewEventService(catalog domain.EventCatalog, auditLog *audit.Logger) *EventService {
	return &EventService{catalog: catalog, audit: auditLog, now: time.Now}
}

func canHost(role string) bool {
	r := security.NormalizeRole(role)
	return r == security.RoleHost || r == security.RoleAdmin
}

func (s *EventService) owned(ctx context.Context, eventID, actorID uuid.UUID, role string) (domain.Event, error) {
	ev, err := s.catalog.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	if ev.HostID != actorID && !isAdmin(role) {
		return domain.Event{}, domain.ErrForbidden
	}
	return ev, nil
}

func (s *EventService) Create(ctx context.Context, hostID uuid.UUID, role string, in domain.NewEventInput) (domain.Event, error) {
	if !canHost(role) {
		return domain.Event{}, domain.ErrForbidden
	}
	ev, err := domain.NewEvent(hostID, in, s.now())
	if err != nil {
		return domain.Event{}, err
	}
	if err := s.catalog.CreateEvent(ctx, ev); err != nil {
		return domain.Event{}, err
	}
	s.audit.EventCreated(ctx, ev)
	return ev, nil
}

// Update applies patch on behalf of the owner or an admin. COMPLETED events are immutable.
func (s *EventService) Update(ctx context.Context, eventID, actorID uuid.UUID, role string, patch domain.EventPatch) (domain.Event, error) {
	ev, err := s.owned(ctx, eventID, actorID, role)
	if err != nil {
		return domain.Event{}, err
	}
	if err := ev.ApplyPatch(patch, s.now()); err != nil {
		return domain.Event{}, err
	}
	if err := s.catalog.UpdateEvent(ctx, ev); err != nil {
		return domain.Event{}, err
	}
	s.audit.EventUpdated(ctx, ev, actorID)
	return ev, nil
}

func (s *EventService) Delete(ctx context.Context, eventID, actorID uuid.UUID, role string) error {
	ev, err := s.owned(ctx, eventID, actorID, role)
	if err != nil {
		return err
	}
	if err := ev.CanDelete(); err != nil {
		return err
	}
	if err := s.catalog.DeleteEvent(ctx, eventID); err != nil {
		return err
	}
	s.audit.EventDeleted(ctx, eventID, actorID)
	return nil
}

func (s *EventService) Get(ctx context.Context, eventID uuid.UUID) (domain.Event, error) {
	return s.catalog.GetEvent(ctx, eventID)
}

func (s *EventService) List(ctx context.Context, f domain.EventFilter) ([]domain.Event, error) {
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return nil, domain.ErrValidationMeta("invalid filter", map[string]string{"endDate": "must not be before startDate"})
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, domain.ErrValidationMeta("invalid filter", map[string]string{"status": "unknown status"})
	}
	return s.catalog.ListEvents(ctx, f)
}
