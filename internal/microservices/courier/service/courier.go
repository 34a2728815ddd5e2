package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/common/events"
	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/geo"
	"delivery-marketplace/internal/microservices/courier/domain"
	"delivery-marketplace/internal/microservices/courier/repository"
)

type CourierServiceInterface interface {
	Register(ctx context.Context, userID int64) (domain.Courier, error)
	Get(ctx context.Context, id int64) (domain.Courier, error)
	GetByUserID(ctx context.Context, userID int64) (domain.Courier, error)
	SubmitVerification(ctx context.Context, id int64, docs domain.Documents) (domain.Courier, error)
	DecideVerification(ctx context.Context, id int64, decision domain.Verification) (domain.Courier, error)
	SetAvailability(ctx context.Context, id int64, to domain.Availability) (domain.Courier, error)
	RecordLocation(ctx context.Context, id int64, p geo.Point, at time.Time) error
	FindNearestAvailable(ctx context.Context, p geo.Point, limit int) ([]domain.Candidate, error)
	Dashboard(ctx context.Context, id int64) (domain.Dashboard, error)
	History(ctx context.Context, id int64, f domain.HistoryFilter) ([]domain.DeliveryRecord, error)
	RatingsSummary(ctx context.Context, id int64) (domain.RatingsSummary, error)
	ListByVerification(ctx context.Context, v domain.Verification, limit, offset int) ([]domain.Courier, error)
}

type CourierService struct {
	repo repository.CourierRepositoryInterface
	sink events.Sink
	lg   *logger.Logger
	now  func() time.Time
}

func NewCourierService(repo repository.CourierRepositoryInterface, sink events.Sink, lg *logger.Logger) *CourierService {
	return &CourierService{repo: repo, sink: sink, lg: lg, now: time.Now}
}

func (s *CourierService) Register(ctx context.Context, userID int64) (domain.Courier, error) {
	if userID <= 0 {
		return domain.Courier{}, apperr.InvalidArgument("user id is required")
	}
	c, err := s.repo.Create(ctx, userID)
	if err != nil {
		return domain.Courier{}, err
	}
	s.lg.Info("courier_registered", map[string]any{"courier_id": c.ID, "user_id": userID})
	return c, nil
}

func (s *CourierService) Get(ctx context.Context, id int64) (domain.Courier, error) {
	return s.repo.Get(ctx, id)
}

func (s *CourierService) GetByUserID(ctx context.Context, userID int64) (domain.Courier, error) {
	return s.repo.GetByUserID(ctx, userID)
}

func (s *CourierService) SubmitVerification(ctx context.Context, id int64, docs domain.Documents) (domain.Courier, error) {
	ok, err := s.repo.SaveDocuments(ctx, id, docs)
	if err != nil {
		return domain.Courier{}, err
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Courier{}, err
	}
	if !ok {
		return domain.Courier{}, apperr.InvalidState("courier %d is already approved", id)
	}
	s.sink.Publish(ctx, events.Event{
		Type:      events.CourierVerificationSubmitted,
		Topic:     events.AdminsTopic,
		CourierID: id,
		Status:    string(domain.VerificationPending),
		Message:   fmt.Sprintf("Courier %d submitted verification documents", id),
	})
	return c, nil
}

// DecideVerification moves a pending courier to approved or rejected. Repeating
// the decision already on record is a no-op.
func (s *CourierService) DecideVerification(ctx context.Context, id int64, decision domain.Verification) (domain.Courier, error) {
	if !decision.IsDecision() {
		return domain.Courier{}, apperr.InvalidArgument("decision must be approved or rejected, got %q", decision)
	}
	changed, err := s.repo.TransitionVerification(ctx, id, domain.VerificationPending, decision)
	if err != nil {
		return domain.Courier{}, err
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Courier{}, err
	}
	if !changed {
		if c.Verification == decision {
			return c, nil
		}
		return domain.Courier{}, apperr.InvalidState("courier %d verification is %s", id, c.Verification)
	}

	s.lg.Info("courier_verification_decided", map[string]any{"courier_id": id, "decision": decision})
	s.sink.Publish(ctx, events.Event{
		Type:      events.CourierVerificationDecided,
		Topic:     events.CourierTopic(id),
		CourierID: id,
		UserID:    c.UserID,
		Status:    string(decision),
		Message:   fmt.Sprintf("Your courier verification was %s", decision),
	})
	return c, nil
}

// SetAvailability is the courier-initiated toggle. busy belongs to dispatch.
func (s *CourierService) SetAvailability(ctx context.Context, id int64, to domain.Availability) (domain.Courier, error) {
	switch to {
	case domain.AvailabilityOnline, domain.AvailabilityOffline:
	case domain.AvailabilityBusy:
		return domain.Courier{}, apperr.InvalidArgument("busy is set by dispatch only")
	default:
		return domain.Courier{}, apperr.InvalidArgument("unknown availability %q", to)
	}

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Courier{}, err
	}
	if c.Availability == to {
		return c, nil
	}
	if to == domain.AvailabilityOnline && c.Verification != domain.VerificationApproved {
		return domain.Courier{}, apperr.InvalidState("courier %d is not approved", id)
	}
	if c.Availability == domain.AvailabilityBusy {
		n, err := s.repo.CountActiveDeliveries(ctx, id)
		if err != nil {
			return domain.Courier{}, err
		}
		if n > 0 {
			return domain.Courier{}, apperr.Conflict("courier %d has %d active deliveries", id, n)
		}
	}

	ok, err := s.repo.SetAvailability(ctx, id, c.Availability, to)
	if err != nil {
		return domain.Courier{}, err
	}
	if !ok {
		return domain.Courier{}, apperr.Conflict("courier %d availability changed concurrently", id)
	}
	s.lg.Debug("courier_availability_changed", map[string]any{"courier_id": id, "from": c.Availability, "to": to})
	c.Availability = to
	return c, nil
}

func (s *CourierService) RecordLocation(ctx context.Context, id int64, p geo.Point, at time.Time) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if at.IsZero() {
		at = s.now()
	}
	return s.repo.UpdateLocation(ctx, id, p, at)
}

// FindNearestAvailable ranks online couriers with a known location by distance
// to p, ties broken by courier id.
func (s *CourierService) FindNearestAvailable(ctx context.Context, p geo.Point, limit int) ([]domain.Candidate, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, apperr.InvalidArgument("limit must be positive")
	}
	couriers, err := s.repo.ListDispatchable(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Candidate, 0, len(couriers))
	for _, c := range couriers {
		if c.Location == nil || c.Availability != domain.AvailabilityOnline {
			continue
		}
		out = append(out, domain.Candidate{Courier: c, DistanceKm: geo.HaversineKm(p, *c.Location)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].Courier.ID < out[j].Courier.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *CourierService) Dashboard(ctx context.Context, id int64) (domain.Dashboard, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Dashboard{}, err
	}
	active, err := s.repo.CountActiveDeliveries(ctx, id)
	if err != nil {
		return domain.Dashboard{}, err
	}
	return domain.Dashboard{
		CourierID:        c.ID,
		Availability:     c.Availability,
		TotalPoints:      c.TotalPoints,
		TotalEarnings:    c.TotalEarnings,
		CompletedCount:   c.CompletedCount,
		AverageRating:    c.AverageRating,
		Tier:             domain.TierFor(c.TotalPoints),
		ActiveDeliveries: active,
	}, nil
}

const (
	defaultPage = 20
	maxPage     = 100
)

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPage
	}
	if limit > maxPage {
		limit = maxPage
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

var historyStatuses = map[string]bool{"": true, "assigned": true, "en_route": true, "delivered": true, "cancelled": true}

func (s *CourierService) History(ctx context.Context, id int64, f domain.HistoryFilter) ([]domain.DeliveryRecord, error) {
	if !historyStatuses[f.Status] {
		return nil, apperr.InvalidArgument("unknown delivery status %q", f.Status)
	}
	f.Limit, f.Offset = page(f.Limit, f.Offset)
	return s.repo.DeliveryHistory(ctx, id, f)
}

func (s *CourierService) RatingsSummary(ctx context.Context, id int64) (domain.RatingsSummary, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.RatingsSummary{}, err
	}
	buckets, err := s.repo.RatingBuckets(ctx, id)
	if err != nil {
		return domain.RatingsSummary{}, err
	}
	out := domain.RatingsSummary{
		CourierID: c.ID,
		Average:   decimal.Zero,
		Breakdown: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
		Tier:      domain.TierFor(c.TotalPoints),
	}
	stars := 0
	for _, b := range buckets {
		out.Breakdown[b.Stars] += b.Count
		out.Count += b.Count
		out.BonusPoints += b.Points
		stars += b.Stars * b.Count
	}
	if out.Count > 0 {
		out.Average = decimal.NewFromInt(int64(stars)).DivRound(decimal.NewFromInt(int64(out.Count)), 2)
	}
	return out, nil
}

func (s *CourierService) ListByVerification(ctx context.Context, v domain.Verification, limit, offset int) ([]domain.Courier, error) {
	if v == "" {
		v = domain.VerificationPending
	}
	if !v.IsValid() {
		return nil, apperr.InvalidArgument("unknown verification status %q", v)
	}
	limit, offset = page(limit, offset)
	return s.repo.ListByVerification(ctx, v, limit, offset)
}
