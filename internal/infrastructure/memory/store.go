package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	"github.com/google/uuid"
)

type enrollmentKey struct {
	EventID uuid.UUID
	UserID  uuid.UUID
}

// OutboxEntry mirrors an outbox row; the memory store keeps them for inspection.
type OutboxEntry struct {
	TraceID    string
	RoutingKey string
	EventID    uuid.UUID
	UserID     uuid.UUID
}

// Store is an in-process EventCatalog and Ledger. One mutex stands in for the
// row locks and transactions of the postgres implementation.
type Store struct {
	mu sync.RWMutex

	events      map[uuid.UUID]domain.Event
	enrollments map[enrollmentKey]domain.Enrollment
	intents     map[uuid.UUID]domain.PaymentIntent
	byTx        map[uuid.UUID]uuid.UUID
	processed   map[string]struct{}
	outbox      []OutboxEntry

	now func() time.Time

	// BeforeCommit, when set, runs after all checks and before any mutation of a
	// write. Returning an error aborts the write with nothing applied.
	BeforeCommit func(op string) error
}

func NewStore() *Store {
	return &Store{
		events:      make(map[uuid.UUID]domain.Event),
		enrollments: make(map[enrollmentKey]domain.Enrollment),
		intents:     make(map[uuid.UUID]domain.PaymentIntent),
		byTx:        make(map[uuid.UUID]uuid.UUID),
		processed:   make(map[string]struct{}),
		now:         time.Now,
	}
}

// SetClock overrides the time source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Outbox() []OutboxEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]OutboxEntry, len(s.outbox))
	copy(out, s.outbox)
	return out
}

func (s *Store) commit(op string) error {
	if s.BeforeCommit != nil {
		if err := s.BeforeCommit(op); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// ---- EventCatalog ----

func (s *Store) GetEvent(_ context.Context, id uuid.UUID) (domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return domain.Event{}, domain.ErrEventNotFound
	}
	ev.EnrolledCount = s.enrolledLocked(id)
	return ev, nil
}

func (s *Store) CreateEvent(_ context.Context, ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[ev.ID]; exists {
		return fmt.Errorf("event %s already exists", ev.ID)
	}
	ev.EnrolledCount = 0
	s.events[ev.ID] = ev
	return nil
}

func (s *Store) UpdateEvent(_ context.Context, ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.events[ev.ID]
	if !ok {
		return domain.ErrEventNotFound
	}
	if cur.Status == domain.EventCompleted {
		return domain.ErrEventCompleted
	}
	ev.EnrolledCount = 0
	s.events[ev.ID] = ev
	return nil
}

// DeleteEvent removes the event with its enrollments and intents.
func (s *Store) DeleteEvent(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.events[id]
	if !ok {
		return domain.ErrEventNotFound
	}
	if cur.Status == domain.EventCompleted {
		return domain.ErrEventCompleted
	}
	delete(s.events, id)
	for k := range s.enrollments {
		if k.EventID == id {
			delete(s.enrollments, k)
		}
	}
	for pid, p := range s.intents {
		if p.EventID == id {
			delete(s.intents, pid)
			delete(s.byTx, p.TransactionID)
		}
	}
	return nil
}

func (s *Store) ListEvents(_ context.Context, f domain.EventFilter) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := f.Status
	if status == "" {
		status = domain.EventOpen
	}

	var out []domain.Event
	for _, ev := range s.events {
		if ev.Status != status {
			continue
		}
		if f.Type != "" && !strings.EqualFold(ev.Type, strings.TrimSpace(f.Type)) {
			continue
		}
		if f.Location != "" && !strings.Contains(strings.ToLower(ev.Location), strings.ToLower(strings.TrimSpace(f.Location))) {
			continue
		}
		if f.Date != nil {
			day := f.Date.UTC().Truncate(24 * time.Hour)
			if ev.Date.Before(day) || !ev.Date.Before(day.Add(24*time.Hour)) {
				continue
			}
		}
		if f.StartDate != nil && ev.Date.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && ev.Date.After(*f.EndDate) {
			continue
		}
		ev.EnrolledCount = s.enrolledLocked(ev.ID)
		out = append(out, ev)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- Ledger ----

func (s *Store) enrolledLocked(eventID uuid.UUID) int {
	n := 0
	for k := range s.enrollments {
		if k.EventID == eventID {
			n++
		}
	}
	return n
}

func (s *Store) occupiedLocked(eventID, excludeUser uuid.UUID) int {
	n := s.enrolledLocked(eventID)
	now := s.now()
	for _, p := range s.intents {
		if p.EventID == eventID && p.UserID != excludeUser && p.Live(now) {
			n++
		}
	}
	return n
}

func (s *Store) pendingLocked(eventID, userID uuid.UUID) (domain.PaymentIntent, bool) {
	for _, p := range s.intents {
		if p.EventID == eventID && p.UserID == userID && p.Status == domain.IntentPending {
			return p, true
		}
	}
	return domain.PaymentIntent{}, false
}

func (s *Store) GetEnrollment(_ context.Context, eventID, userID uuid.UUID) (domain.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.enrollments[enrollmentKey{eventID, userID}]
	if !ok {
		return domain.Enrollment{}, domain.ErrEnrollmentNotFound
	}
	return e, nil
}

func (s *Store) CountOccupied(_ context.Context, eventID, excludeUser uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.occupiedLocked(eventID, excludeUser), nil
}

func (s *Store) EnrollFree(_ context.Context, traceID string, eventID, userID uuid.UUID) (domain.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[eventID]
	if !ok {
		return domain.Enrollment{}, domain.ErrEventNotFound
	}
	if !ev.IsFree() {
		return domain.Enrollment{}, domain.ErrPaymentRequired
	}
	key := enrollmentKey{eventID, userID}
	if _, exists := s.enrollments[key]; exists {
		return domain.Enrollment{}, domain.ErrAlreadyEnrolled
	}
	if err := domain.CanJoin(ev, s.occupiedLocked(eventID, userID)); err != nil {
		return domain.Enrollment{}, err
	}
	if err := s.commit("enroll_free"); err != nil {
		return domain.Enrollment{}, err
	}

	e := domain.Enrollment{
		ID:            uuid.New(),
		UserID:        userID,
		EventID:       eventID,
		PaymentStatus: domain.PaymentFree,
		JoinedAt:      s.now().UTC(),
	}
	s.enrollments[key] = e
	s.outbox = append(s.outbox, OutboxEntry{TraceID: traceID, RoutingKey: "enrollment.created", EventID: eventID, UserID: userID})
	return e, nil
}

func (s *Store) CreateIntent(_ context.Context, eventID, userID uuid.UUID, currency string, ttl time.Duration) (domain.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[eventID]
	if !ok {
		return domain.PaymentIntent{}, domain.ErrEventNotFound
	}
	if ev.IsFree() {
		return domain.PaymentIntent{}, domain.ErrEventIsFree
	}
	if _, exists := s.enrollments[enrollmentKey{eventID, userID}]; exists {
		return domain.PaymentIntent{}, domain.ErrAlreadyEnrolled
	}

	now := s.now().UTC()
	if p, ok := s.pendingLocked(eventID, userID); ok {
		if p.Live(now) {
			return domain.PaymentIntent{}, domain.ErrDuplicatePending
		}
	}
	if err := domain.CanJoin(ev, s.occupiedLocked(eventID, userID)); err != nil {
		return domain.PaymentIntent{}, err
	}
	if err := s.commit("create_intent"); err != nil {
		return domain.PaymentIntent{}, err
	}

	// stale holds of this user no longer block a retry
	if p, ok := s.pendingLocked(eventID, userID); ok {
		p.Status = domain.IntentFailed
		p.UpdatedAt = now
		s.intents[p.ID] = p
	}

	p := domain.PaymentIntent{
		ID:            uuid.New(),
		TransactionID: uuid.New(),
		UserID:        userID,
		EventID:       eventID,
		HostID:        ev.HostID,
		Amount:        ev.JoiningFee,
		Currency:      strings.ToLower(currency),
		Status:        domain.IntentPending,
		ExpiresAt:     now.Add(ttl),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.intents[p.ID] = p
	s.byTx[p.TransactionID] = p.ID
	return p, nil
}

func (s *Store) FailIntent(_ context.Context, intentID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.intents[intentID]
	if !ok || p.Status != domain.IntentPending {
		return false, nil
	}
	p.Status = domain.IntentFailed
	p.UpdatedAt = s.now().UTC()
	s.intents[intentID] = p
	return true, nil
}

func (s *Store) Reconcile(_ context.Context, traceID string, in domain.ReconcileInput) (domain.ReconcileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byTx[in.TransactionID]
	if !ok {
		return domain.ReconcileResult{}, domain.ErrIntentNotFound
	}
	p := s.intents[id]

	if in.ProviderEventID != "" {
		if _, seen := s.processed[in.ProviderEventID]; seen {
			return domain.ReconcileResult{Intent: p, Status: p.Status, Duplicate: true}, nil
		}
	}
	if (in.IntentID != uuid.Nil && in.IntentID != p.ID) ||
		(in.UserID != uuid.Nil && in.UserID != p.UserID) ||
		(in.EventID != uuid.Nil && in.EventID != p.EventID) {
		return domain.ReconcileResult{}, domain.ErrIntentNotFound.Wrap(fmt.Errorf("metadata mismatch for transaction %s", in.TransactionID))
	}

	if p.Status.Terminal() {
		if err := s.commit("reconcile"); err != nil {
			return domain.ReconcileResult{}, err
		}
		s.markProcessedLocked(in.ProviderEventID)
		return domain.ReconcileResult{
			Intent:      p,
			Status:      p.Status,
			NeedsRefund: in.Paid && p.Status == domain.IntentFailed,
		}, nil
	}

	if err := s.commit("reconcile"); err != nil {
		return domain.ReconcileResult{}, err
	}

	now := s.now().UTC()
	res := domain.ReconcileResult{Applied: true}
	if in.Paid && p.Live(now) {
		p.Status = domain.IntentPaid
		key := enrollmentKey{p.EventID, p.UserID}
		if _, exists := s.enrollments[key]; !exists {
			s.enrollments[key] = domain.Enrollment{
				ID:            uuid.New(),
				UserID:        p.UserID,
				EventID:       p.EventID,
				PaymentStatus: domain.PaymentPaid,
				JoinedAt:      now,
			}
			res.EnrollmentCreated = true
		}
		s.outbox = append(s.outbox, OutboxEntry{TraceID: traceID, RoutingKey: "payment.succeeded", EventID: p.EventID, UserID: p.UserID})
	} else {
		p.Status = domain.IntentFailed
		res.NeedsRefund = in.Paid
		s.outbox = append(s.outbox, OutboxEntry{TraceID: traceID, RoutingKey: "payment.failed", EventID: p.EventID, UserID: p.UserID})
	}
	p.UpdatedAt = now
	s.intents[p.ID] = p
	s.markProcessedLocked(in.ProviderEventID)

	res.Intent = p
	res.Status = p.Status
	return res, nil
}

func (s *Store) markProcessedLocked(providerEventID string) {
	if providerEventID != "" {
		s.processed[providerEventID] = struct{}{}
	}
}

func (s *Store) ExpireIntents(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	var n int64
	for id, p := range s.intents {
		if p.Status == domain.IntentPending && !now.Before(p.ExpiresAt) {
			p.Status = domain.IntentFailed
			p.UpdatedAt = now
			s.intents[id] = p
			n++
		}
	}
	return n, nil
}

func (s *Store) LatestIntent(_ context.Context, eventID, userID uuid.UUID) (domain.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest domain.PaymentIntent
	found := false
	for _, p := range s.intents {
		if p.EventID != eventID || p.UserID != userID {
			continue
		}
		if !found || p.CreatedAt.After(latest.CreatedAt) {
			latest, found = p, true
		}
	}
	if !found {
		return domain.PaymentIntent{}, domain.ErrIntentNotFound
	}
	return latest, nil
}

func (s *Store) ListMyEnrollments(_ context.Context, userID uuid.UUID, limit int, cursor *domain.KeysetCursor) ([]domain.Enrollment, *domain.KeysetCursor, error) {
	s.mu.RLock()
	var all []domain.Enrollment
	for k, e := range s.enrollments {
		if k.UserID == userID {
			all = append(all, e)
		}
	}
	s.mu.RUnlock()

	// newest first
	sort.Slice(all, func(i, j int) bool { return after(all[i], all[j]) })
	var page []domain.Enrollment
	for _, e := range all {
		if cursor != nil && !after(domain.Enrollment{JoinedAt: cursor.CreatedAt, ID: cursor.ID}, e) {
			continue
		}
		page = append(page, e)
	}
	return paginate(page, limit)
}

func (s *Store) ListParticipants(_ context.Context, eventID uuid.UUID, limit int, cursor *domain.KeysetCursor) ([]domain.Enrollment, *domain.KeysetCursor, error) {
	s.mu.RLock()
	var all []domain.Enrollment
	for k, e := range s.enrollments {
		if k.EventID == eventID {
			all = append(all, e)
		}
	}
	s.mu.RUnlock()

	// oldest first
	sort.Slice(all, func(i, j int) bool { return after(all[j], all[i]) })
	var page []domain.Enrollment
	for _, e := range all {
		if cursor != nil && !after(e, domain.Enrollment{JoinedAt: cursor.CreatedAt, ID: cursor.ID}) {
			continue
		}
		page = append(page, e)
	}
	return paginate(page, limit)
}

// after orders by (joined_at, id) like the SQL keyset.
func after(a, b domain.Enrollment) bool {
	if !a.JoinedAt.Equal(b.JoinedAt) {
		return a.JoinedAt.After(b.JoinedAt)
	}
	return a.ID.String() > b.ID.String()
}

func paginate(items []domain.Enrollment, limit int) ([]domain.Enrollment, *domain.KeysetCursor, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if len(items) <= limit {
		return items, nil, nil
	}
	last := items[limit-1]
	return items[:limit], &domain.KeysetCursor{CreatedAt: last.JoinedAt, ID: last.ID}, nil
}
