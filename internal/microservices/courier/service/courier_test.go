package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/common/events"
	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/geo"
	"delivery-marketplace/internal/microservices/courier/domain"
)

type mockRepo struct {
	createFn                 func(ctx context.Context, userID int64) (domain.Courier, error)
	getFn                    func(ctx context.Context, id int64) (domain.Courier, error)
	saveDocumentsFn          func(ctx context.Context, id int64, docs domain.Documents) (bool, error)
	transitionVerificationFn func(ctx context.Context, id int64, from, to domain.Verification) (bool, error)
	setAvailabilityFn        func(ctx context.Context, id int64, from, to domain.Availability) (bool, error)
	updateLocationFn         func(ctx context.Context, id int64, p geo.Point, at time.Time) error
	countActiveFn            func(ctx context.Context, id int64) (int, error)
	listDispatchableFn       func(ctx context.Context) ([]domain.Courier, error)
	listByVerificationFn     func(ctx context.Context, v domain.Verification, limit, offset int) ([]domain.Courier, error)
	historyFn                func(ctx context.Context, id int64, f domain.HistoryFilter) ([]domain.DeliveryRecord, error)
	ratingBucketsFn          func(ctx context.Context, id int64) ([]domain.RatingBucket, error)
}

func (m *mockRepo) Create(ctx context.Context, userID int64) (domain.Courier, error) {
	return m.createFn(ctx, userID)
}
func (m *mockRepo) Get(ctx context.Context, id int64) (domain.Courier, error) { return m.getFn(ctx, id) }
func (m *mockRepo) GetByUserID(ctx context.Context, userID int64) (domain.Courier, error) {
	return m.getFn(ctx, userID)
}
func (m *mockRepo) SaveDocuments(ctx context.Context, id int64, docs domain.Documents) (bool, error) {
	return m.saveDocumentsFn(ctx, id, docs)
}
func (m *mockRepo) TransitionVerification(ctx context.Context, id int64, from, to domain.Verification) (bool, error) {
	return m.transitionVerificationFn(ctx, id, from, to)
}
func (m *mockRepo) SetAvailability(ctx context.Context, id int64, from, to domain.Availability) (bool, error) {
	return m.setAvailabilityFn(ctx, id, from, to)
}
func (m *mockRepo) UpdateLocation(ctx context.Context, id int64, p geo.Point, at time.Time) error {
	return m.updateLocationFn(ctx, id, p, at)
}
func (m *mockRepo) CountActiveDeliveries(ctx context.Context, id int64) (int, error) {
	return m.countActiveFn(ctx, id)
}
func (m *mockRepo) ListDispatchable(ctx context.Context) ([]domain.Courier, error) {
	return m.listDispatchableFn(ctx)
}
func (m *mockRepo) ListByVerification(ctx context.Context, v domain.Verification, limit, offset int) ([]domain.Courier, error) {
	return m.listByVerificationFn(ctx, v, limit, offset)
}
func (m *mockRepo) DeliveryHistory(ctx context.Context, id int64, f domain.HistoryFilter) ([]domain.DeliveryRecord, error) {
	return m.historyFn(ctx, id, f)
}
func (m *mockRepo) RatingBuckets(ctx context.Context, id int64) ([]domain.RatingBucket, error) {
	return m.ratingBucketsFn(ctx, id)
}

func newTestService(repo *mockRepo) (*CourierService, *events.Recorder) {
	rec := &events.Recorder{}
	return NewCourierService(repo, rec, logger.NewWithWriter("courier-test", io.Discard)), rec
}

func TestRegisterConflict(t *testing.T) {
	repo := &mockRepo{
		createFn: func(ctx context.Context, userID int64) (domain.Courier, error) {
			return domain.Courier{}, apperr.Conflict("courier for user %d already exists", userID)
		},
	}
	svc, _ := newTestService(repo)
	_, err := svc.Register(context.Background(), 3)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRegisterDefaults(t *testing.T) {
	repo := &mockRepo{
		createFn: func(ctx context.Context, userID int64) (domain.Courier, error) {
			return domain.Courier{ID: 1, UserID: userID, Verification: domain.VerificationPending, Availability: domain.AvailabilityOffline}, nil
		},
	}
	svc, _ := newTestService(repo)
	c, err := svc.Register(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, domain.AvailabilityOffline, c.Availability)
	assert.Equal(t, domain.VerificationPending, c.Verification)
}

func TestSubmitVerificationWhenApproved(t *testing.T) {
	repo := &mockRepo{
		saveDocumentsFn: func(context.Context, int64, domain.Documents) (bool, error) { return false, nil },
		getFn: func(ctx context.Context, id int64) (domain.Courier, error) {
			return domain.Courier{ID: id, Verification: domain.VerificationApproved}, nil
		},
	}
	svc, rec := newTestService(repo)
	_, err := svc.SubmitVerification(context.Background(), 1, domain.Documents{DocumentURL: "https://s/doc", SelfieURL: "https://s/selfie"})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Empty(t, rec.Events())
}

func TestDecideVerificationIdempotent(t *testing.T) {
	stored := domain.VerificationPending
	repo := &mockRepo{
		transitionVerificationFn: func(ctx context.Context, id int64, from, to domain.Verification) (bool, error) {
			if stored != from {
				return false, nil
			}
			stored = to
			return true, nil
		},
		getFn: func(ctx context.Context, id int64) (domain.Courier, error) {
			return domain.Courier{ID: id, UserID: 40, Verification: stored}, nil
		},
	}
	svc, rec := newTestService(repo)

	c, err := svc.DecideVerification(context.Background(), 7, domain.VerificationApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationApproved, c.Verification)

	c, err = svc.DecideVerification(context.Background(), 7, domain.VerificationApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationApproved, c.Verification)
	assert.Equal(t, 1, rec.Count(events.CourierVerificationDecided))

	_, err = svc.DecideVerification(context.Background(), 7, domain.VerificationRejected)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = svc.DecideVerification(context.Background(), 7, domain.VerificationPending)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestSetAvailabilityRules(t *testing.T) {
	current := domain.Courier{ID: 2, Verification: domain.VerificationApproved, Availability: domain.AvailabilityBusy}
	active := 1
	repo := &mockRepo{
		getFn:         func(context.Context, int64) (domain.Courier, error) { return current, nil },
		countActiveFn: func(context.Context, int64) (int, error) { return active, nil },
		setAvailabilityFn: func(ctx context.Context, id int64, from, to domain.Availability) (bool, error) {
			if current.Availability != from {
				return false, nil
			}
			current.Availability = to
			return true, nil
		},
	}
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.SetAvailability(ctx, 2, domain.AvailabilityBusy)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = svc.SetAvailability(ctx, 2, domain.AvailabilityOffline)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, domain.AvailabilityBusy, current.Availability)

	active = 0
	c, err := svc.SetAvailability(ctx, 2, domain.AvailabilityOnline)
	require.NoError(t, err)
	assert.Equal(t, domain.AvailabilityOnline, c.Availability)

	c, err = svc.SetAvailability(ctx, 2, domain.AvailabilityOffline)
	require.NoError(t, err)
	assert.Equal(t, domain.AvailabilityOffline, c.Availability)
}

func TestSetAvailabilityLostRace(t *testing.T) {
	repo := &mockRepo{
		getFn: func(context.Context, int64) (domain.Courier, error) {
			return domain.Courier{ID: 2, Verification: domain.VerificationApproved, Availability: domain.AvailabilityOnline}, nil
		},
		setAvailabilityFn: func(context.Context, int64, domain.Availability, domain.Availability) (bool, error) {
			return false, nil // dispatch made the courier busy in between
		},
	}
	svc, _ := newTestService(repo)
	_, err := svc.SetAvailability(context.Background(), 2, domain.AvailabilityOffline)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestSetAvailabilityRequiresApproval(t *testing.T) {
	repo := &mockRepo{
		getFn: func(context.Context, int64) (domain.Courier, error) {
			return domain.Courier{ID: 2, Verification: domain.VerificationPending, Availability: domain.AvailabilityOffline}, nil
		},
	}
	svc, _ := newTestService(repo)
	_, err := svc.SetAvailability(context.Background(), 2, domain.AvailabilityOnline)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestRecordLocationValidates(t *testing.T) {
	var stored geo.Point
	repo := &mockRepo{
		updateLocationFn: func(ctx context.Context, id int64, p geo.Point, at time.Time) error {
			stored = p
			assert.False(t, at.IsZero())
			return nil
		},
	}
	svc, _ := newTestService(repo)

	assert.ErrorIs(t, svc.RecordLocation(context.Background(), 1, geo.Point{Lat: 91, Lng: 0}, time.Time{}), apperr.ErrInvalidArgument)
	assert.ErrorIs(t, svc.RecordLocation(context.Background(), 1, geo.Point{Lat: 0, Lng: -180.5}, time.Time{}), apperr.ErrInvalidArgument)
	require.NoError(t, svc.RecordLocation(context.Background(), 1, geo.Point{Lat: 6.5, Lng: 3.3}, time.Time{}))
	assert.Equal(t, 6.5, stored.Lat)
}

func TestFindNearestAvailableOrdering(t *testing.T) {
	at := func(lat, lng float64) *geo.Point { return &geo.Point{Lat: lat, Lng: lng} }
	repo := &mockRepo{
		listDispatchableFn: func(context.Context) ([]domain.Courier, error) {
			return []domain.Courier{
				{ID: 9, Availability: domain.AvailabilityOnline, Location: at(6.60, 3.35)},
				{ID: 4, Availability: domain.AvailabilityOnline, Location: at(6.53, 3.38)},
				{ID: 3, Availability: domain.AvailabilityOnline, Location: at(6.53, 3.38)},
				{ID: 1, Availability: domain.AvailabilityOnline},
				{ID: 2, Availability: domain.AvailabilityBusy, Location: at(6.52, 3.37)},
			}, nil
		},
	}
	svc, _ := newTestService(repo)

	got, err := svc.FindNearestAvailable(context.Background(), geo.Point{Lat: 6.5244, Lng: 3.3792}, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(3), got[0].Courier.ID)
	assert.Equal(t, int64(4), got[1].Courier.ID)
	assert.Equal(t, int64(9), got[2].Courier.ID)
	assert.Equal(t, got[0].DistanceKm, got[1].DistanceKm)

	got, err = svc.FindNearestAvailable(context.Background(), geo.Point{Lat: 6.5244, Lng: 3.3792}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].Courier.ID)
}

func TestDashboardTier(t *testing.T) {
	repo := &mockRepo{
		getFn: func(context.Context, int64) (domain.Courier, error) {
			return domain.Courier{ID: 5, TotalPoints: 520}, nil
		},
		countActiveFn: func(context.Context, int64) (int, error) { return 1, nil },
	}
	svc, _ := newTestService(repo)
	d, err := svc.Dashboard(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, domain.TierGold, d.Tier)
	assert.Equal(t, 1, d.ActiveDeliveries)

	assert.Equal(t, domain.TierBronze, domain.TierFor(199))
	assert.Equal(t, domain.TierSilver, domain.TierFor(200))
	assert.Equal(t, domain.TierPlatinum, domain.TierFor(1000))
}

func TestRatingsSummary(t *testing.T) {
	repo := &mockRepo{
		getFn: func(ctx context.Context, id int64) (domain.Courier, error) {
			return domain.Courier{ID: id, TotalPoints: 520}, nil
		},
		ratingBucketsFn: func(ctx context.Context, id int64) ([]domain.RatingBucket, error) {
			return []domain.RatingBucket{
				{Stars: 3, Count: 1, Points: 10},
				{Stars: 4, Count: 1, Points: 12},
				{Stars: 5, Count: 1, Points: 15},
			}, nil
		},
	}
	svc, _ := newTestService(repo)

	sum, err := svc.RatingsSummary(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), sum.CourierID)
	assert.Equal(t, 3, sum.Count)
	assert.Equal(t, "4", sum.Average.String())
	assert.Equal(t, map[int]int{1: 0, 2: 0, 3: 1, 4: 1, 5: 1}, sum.Breakdown)
	assert.Equal(t, 37, sum.BonusPoints)
	assert.Equal(t, domain.TierGold, sum.Tier)
}

func TestRatingsSummaryUnrated(t *testing.T) {
	repo := &mockRepo{
		getFn:           func(ctx context.Context, id int64) (domain.Courier, error) { return domain.Courier{ID: id}, nil },
		ratingBucketsFn: func(context.Context, int64) ([]domain.RatingBucket, error) { return nil, nil },
	}
	svc, _ := newTestService(repo)

	sum, err := svc.RatingsSummary(context.Background(), 4)
	require.NoError(t, err)
	assert.Zero(t, sum.Count)
	assert.True(t, sum.Average.IsZero())
	assert.Len(t, sum.Breakdown, 5)
	assert.Equal(t, domain.TierBronze, sum.Tier)

	repo.getFn = func(ctx context.Context, id int64) (domain.Courier, error) {
		return domain.Courier{}, apperr.NotFound("courier %d not found", id)
	}
	_, err = svc.RatingsSummary(context.Background(), 4)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRatingsAverageRounds(t *testing.T) {
	repo := &mockRepo{
		getFn: func(ctx context.Context, id int64) (domain.Courier, error) { return domain.Courier{ID: id}, nil },
		ratingBucketsFn: func(context.Context, int64) ([]domain.RatingBucket, error) {
			return []domain.RatingBucket{{Stars: 4, Count: 2}, {Stars: 5, Count: 1}}, nil
		},
	}
	svc, _ := newTestService(repo)
	sum, err := svc.RatingsSummary(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "4.33", sum.Average.String())
}

func TestHistoryFilter(t *testing.T) {
	var got domain.HistoryFilter
	repo := &mockRepo{
		historyFn: func(ctx context.Context, id int64, f domain.HistoryFilter) ([]domain.DeliveryRecord, error) {
			assert.Equal(t, int64(6), id)
			got = f
			return []domain.DeliveryRecord{{DeliveryID: 1, Status: f.Status}}, nil
		},
	}
	svc, _ := newTestService(repo)
	ctx := context.Background()

	out, err := svc.History(ctx, 6, domain.HistoryFilter{Status: "delivered", Limit: 500, Offset: -1})
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, domain.HistoryFilter{Status: "delivered", Limit: maxPage, Offset: 0}, got)

	_, err = svc.History(ctx, 6, domain.HistoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, defaultPage, got.Limit)

	_, err = svc.History(ctx, 6, domain.HistoryFilter{Status: "lost"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestListByVerificationDefaultsToPending(t *testing.T) {
	var got domain.Verification
	repo := &mockRepo{
		listByVerificationFn: func(ctx context.Context, v domain.Verification, limit, offset int) ([]domain.Courier, error) {
			got = v
			return []domain.Courier{{ID: 3, Verification: v}}, nil
		},
	}
	svc, _ := newTestService(repo)
	ctx := context.Background()

	out, err := svc.ListByVerification(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationPending, got)
	assert.Len(t, out, 1)

	_, err = svc.ListByVerification(ctx, domain.VerificationRejected, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationRejected, got)

	_, err = svc.ListByVerification(ctx, "maybe", 10, 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}
