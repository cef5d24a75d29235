package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/booking-service/internal/audit"
	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	"github.com/baechuer/real-time-ressys/booking-service/internal/metrics"
	"github.com/baechuer/real-time-ressys/booking-service/internal/pkg/logger"
	"github.com/baechuer/real-time-ressys/booking-service/internal/security"
	"github.com/google/uuid"
)

type PaymentOptions struct {
	Currency   string
	SuccessURL string
	CancelURL  string
	IntentTTL  time.Duration
}

// JoinResult is either a confirmed free enrollment or a checkout redirect.
type JoinResult struct {
	Enrollment *domain.Enrollment
	Intent     *domain.PaymentIntent
	PaymentURL string
}

type JoinService struct {
	catalog  domain.EventCatalog
	ledger   domain.Ledger
	checkout domain.CheckoutProvider
	audit    *audit.Logger
	opts     PaymentOptions
}

func NewJoinService(catalog domain.EventCatalog, ledger domain.Ledger, checkout domain.CheckoutProvider, auditLog *audit.Logger, opts PaymentOptions) *JoinService {
	return &JoinService{
		catalog:  catalog,
		ledger:   ledger,
		checkout: checkout,
		audit:    auditLog,
		opts:     opts,
	}
}

func isAdmin(role string) bool {
	return security.NormalizeRole(role) == security.RoleAdmin
}

func (s *JoinService) requireHostOrAdmin(ctx context.Context, eventID, requesterID uuid.UUID, role string) error {
	if isAdmin(role) {
		return nil
	}
	ev, err := s.catalog.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if ev.HostID != requesterID {
		return domain.ErrForbidden
	}
	return nil
}

// Join admits userID to eventID. Free events are enrolled synchronously; paid
// events get a PENDING intent and a checkout URL, and the enrollment appears
// only once the provider confirms payment through the webhook.
func (s *JoinService) Join(ctx context.Context, traceID string, eventID, userID uuid.UUID) (JoinResult, error) {
	res, err := s.join(ctx, traceID, eventID, userID)
	metrics.RecordJoin(joinOutcome(res, err))
	return res, err
}

func (s *JoinService) join(ctx context.Context, traceID string, eventID, userID uuid.UUID) (JoinResult, error) {
	ev, err := s.catalog.GetEvent(ctx, eventID)
	if err != nil {
		return JoinResult{}, err
	}

	if _, err := s.ledger.GetEnrollment(ctx, eventID, userID); err == nil {
		return JoinResult{}, domain.ErrAlreadyEnrolled
	} else if !errors.Is(err, domain.ErrEnrollmentNotFound) {
		return JoinResult{}, err
	}

	// fast rejection; the ledger re-runs the gate under the event row lock
	occupied, err := s.ledger.CountOccupied(ctx, eventID, userID)
	if err != nil {
		return JoinResult{}, err
	}
	if err := domain.CanJoin(ev, occupied); err != nil {
		return JoinResult{}, err
	}

	if ev.IsFree() {
		e, err := s.ledger.EnrollFree(ctx, traceID, eventID, userID)
		if err != nil {
			return JoinResult{}, err
		}
		s.audit.EnrollmentCreated(ctx, eventID, userID, domain.PaymentFree)
		return JoinResult{Enrollment: &e}, nil
	}

	p, err := s.ledger.CreateIntent(ctx, eventID, userID, s.opts.Currency, s.opts.IntentTTL)
	if err != nil {
		return JoinResult{}, err
	}
	s.audit.IntentCreated(ctx, p)

	url, err := s.checkout.OpenSession(ctx, domain.CheckoutRequest{
		Intent:     p,
		Event:      ev,
		SuccessURL: s.opts.SuccessURL,
		CancelURL:  s.opts.CancelURL,
	})
	if err != nil {
		// release the hold so the user can retry right away
		if _, ferr := s.ledger.FailIntent(context.WithoutCancel(ctx), p.ID); ferr != nil {
			logger.WithCtx(ctx).Error().Err(ferr).
				Str("intent_id", p.ID.String()).
				Msg("failed to release intent after provider error")
		}
		if !errors.Is(err, domain.ErrProviderUnavailable) {
			err = domain.ErrProviderUnavailable.Wrap(err)
		}
		return JoinResult{}, err
	}

	return JoinResult{Intent: &p, PaymentURL: url}, nil
}

func joinOutcome(res JoinResult, err error) string {
	switch {
	case err == nil && res.Enrollment != nil:
		return "free"
	case err == nil:
		return "redirect"
	}
	var ae *domain.AppError
	if errors.As(err, &ae) {
		return strings.ReplaceAll(ae.Code, ".", "_")
	}
	return "error"
}

// MyJoinStatus returns the caller's enrollment, or the latest intent when the
// paid flow has not settled yet.
func (s *JoinService) MyJoinStatus(ctx context.Context, eventID, userID uuid.UUID) (domain.JoinStatus, error) {
	e, err := s.ledger.GetEnrollment(ctx, eventID, userID)
	if err == nil {
		return domain.JoinStatus{Enrollment: &e}, nil
	}
	if !errors.Is(err, domain.ErrEnrollmentNotFound) {
		return domain.JoinStatus{}, err
	}

	p, err := s.ledger.LatestIntent(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrIntentNotFound) {
			return domain.JoinStatus{}, domain.ErrEnrollmentNotFound
		}
		return domain.JoinStatus{}, err
	}
	return domain.JoinStatus{Intent: &p}, nil
}

// Reads
func (s *JoinService) ListMyEnrollments(ctx context.Context, userID uuid.UUID, limit int, cursor *domain.KeysetCursor) ([]domain.Enrollment, *domain.KeysetCursor, error) {
	return s.ledger.ListMyEnrollments(ctx, userID, limit, cursor)
}

func (s *JoinService) ListParticipants(ctx context.Context, eventID, requesterID uuid.UUID, role string, limit int, cursor *domain.KeysetCursor) ([]domain.Enrollment, *domain.KeysetCursor, error) {
	if err := s.requireHostOrAdmin(ctx, eventID, requesterID, role); err != nil {
		return nil, nil, err
	}
	return s.ledger.ListParticipants(ctx, eventID, limit, cursor)
}
