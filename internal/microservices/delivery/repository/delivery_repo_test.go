package repository

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/geo"
	"delivery-marketplace/internal/microservices/delivery/domain"
	"delivery-marketplace/internal/testutil"
)

func seed(t *testing.T, db *sql.DB, couriers int) (orderID int64, courierIDs []int64) {
	t.Helper()
	ctx := context.Background()
	var buyerID int64
	require.NoError(t, db.QueryRowContext(ctx,
		`INSERT INTO users (email, role) VALUES ($1, 'buyer') RETURNING id`, uuid.NewString()+"@example.com").Scan(&buyerID))
	require.NoError(t, db.QueryRowContext(ctx,
		`INSERT INTO orders (buyer_id, status, total_amount) VALUES ($1, 'delivery_paid', 100) RETURNING id`, buyerID).Scan(&orderID))
	for i := 0; i < couriers; i++ {
		var userID, courierID int64
		require.NoError(t, db.QueryRowContext(ctx,
			`INSERT INTO users (email, role) VALUES ($1, 'courier') RETURNING id`, uuid.NewString()+"@example.com").Scan(&userID))
		require.NoError(t, db.QueryRowContext(ctx, `
			INSERT INTO couriers (user_id, verification_status, availability, latitude, longitude)
			VALUES ($1, 'approved', 'online', 0, 0) RETURNING id`, userID).Scan(&courierID))
		courierIDs = append(courierIDs, courierID)
	}
	return orderID, courierIDs
}

func newDelivery(orderID, courierID int64) domain.NewDelivery {
	return domain.NewDelivery{
		OrderID: orderID, CourierID: courierID,
		Pickup: geo.Point{Lat: 0, Lng: 0}, Dropoff: geo.Point{Lat: 0, Lng: 0.05},
		Fee: decimal.NewFromInt(3157), EtaMinutes: 12, DistanceKm: 5.56,
	}
}

func reward(t *testing.T, rating *int) domain.Reward {
	t.Helper()
	r, err := domain.ComputeReward(5.56, rating)
	require.NoError(t, err)
	return r
}

func TestConcurrentCreateAssignedOneWinner(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewDeliveryRepository(db)
	orderID, couriers := seed(t, db, 4)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, c := range couriers {
		wg.Add(1)
		go func(courierID int64) {
			defer wg.Done()
			_, err := repo.CreateAssigned(context.Background(), newDelivery(orderID, courierID), "admin")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			assert.ErrorIs(t, err, apperr.ErrConflict)
		}(c)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	var busy int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM couriers WHERE id = ANY($1) AND availability = 'busy'`, couriers).Scan(&busy))
	assert.Equal(t, 1, busy)
}

func TestLifecycleAgainstStore(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewDeliveryRepository(db)
	ctx := context.Background()
	orderID, couriers := seed(t, db, 1)

	d, err := repo.CreateAssigned(ctx, newDelivery(orderID, couriers[0]), "admin")
	require.NoError(t, err)

	_, ok, err := repo.MarkDelivered(ctx, d.ID, couriers[0], reward(t, nil), "courier")
	require.NoError(t, err)
	assert.False(t, ok, "deliver before pickup")

	_, ok, err = repo.MarkPickedUp(ctx, d.ID, couriers[0]+1000, 12, "courier")
	require.NoError(t, err)
	assert.False(t, ok, "foreign courier")

	_, ok, err = repo.MarkPickedUp(ctx, d.ID, couriers[0], 12, "courier")
	require.NoError(t, err)
	assert.True(t, ok)

	rating := 5
	done, ok, err := repo.MarkDelivered(ctx, d.ID, couriers[0], reward(t, &rating), "courier")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StatusDelivered, done.Status)

	_, ok, err = repo.MarkDelivered(ctx, d.ID, couriers[0], reward(t, &rating), "courier")
	require.NoError(t, err)
	assert.False(t, ok)

	var points, completed int
	var availability string
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT total_points, completed_count, availability FROM couriers WHERE id = $1`, couriers[0]).
		Scan(&points, &completed, &availability))
	assert.Equal(t, 17, points)
	assert.Equal(t, 1, completed)
	assert.Equal(t, "online", availability)

	timeline, err := repo.Timeline(ctx, d.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, timeline, 3)
}

func TestCreateAssignedGuards(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewDeliveryRepository(db)
	ctx := context.Background()
	orderID, couriers := seed(t, db, 2)

	_, err := repo.CreateAssigned(ctx, newDelivery(orderID, couriers[0]), "admin")
	require.NoError(t, err)

	_, err = repo.CreateAssigned(ctx, newDelivery(orderID, couriers[1]), "admin")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// a busy courier cannot take a second order; nothing of the attempt survives
	otherOrder, _ := seed(t, db, 0)
	_, err = repo.CreateAssigned(ctx, newDelivery(otherOrder, couriers[0]), "admin")
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = repo.GetByOrder(ctx, otherOrder)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	var availability string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT availability FROM couriers WHERE id = $1`, couriers[1]).Scan(&availability))
	assert.Equal(t, "online", availability)
}

func TestMarkDeliveredCreditsOnce(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewDeliveryRepository(db)
	ctx := context.Background()
	orderID, couriers := seed(t, db, 1)
	courierID := couriers[0]

	d, err := repo.CreateAssigned(ctx, newDelivery(orderID, courierID), "admin")
	require.NoError(t, err)
	_, ok, err := repo.MarkPickedUp(ctx, d.ID, courierID, 12, "courier")
	require.NoError(t, err)
	require.True(t, ok)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	rating := 4
	rw := reward(t, &rating)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := repo.MarkDelivered(ctx, d.ID, courierID, rw, "courier")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, applied)

	var (
		points, completed, ratings int
		earnings, average          decimal.Decimal
		orderStatus                string
	)
	require.NoError(t, db.QueryRowContext(ctx, `
		SELECT total_points, completed_count, rating_count, total_earnings, average_rating
		FROM couriers WHERE id = $1`, courierID).Scan(&points, &completed, &ratings, &earnings, &average))
	assert.Equal(t, 17, points)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, ratings)
	assert.Equal(t, "3162", earnings.String())
	assert.Equal(t, "4", average.String())

	require.NoError(t, db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&orderStatus))
	assert.Equal(t, "delivered", orderStatus)

	timeline, err := repo.Timeline(ctx, d.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, timeline, 3)
}
