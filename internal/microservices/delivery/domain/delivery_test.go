package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-marketplace/internal/common/apperr"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from Status
		ev   Event
		to   Status
		ok   bool
	}{
		{"", EventAssign, StatusAssigned, true},
		{StatusAssigned, EventPickup, StatusEnRoute, true},
		{StatusAssigned, EventCancel, StatusCancelled, true},
		{StatusEnRoute, EventDeliver, StatusDelivered, true},
		{StatusEnRoute, EventCancel, StatusCancelled, true},

		{"", EventPickup, "", false},
		{StatusAssigned, EventDeliver, "", false},
		{StatusAssigned, EventAssign, "", false},
		{StatusEnRoute, EventPickup, "", false},
		{StatusDelivered, EventCancel, "", false},
		{StatusDelivered, EventDeliver, "", false},
		{StatusCancelled, EventPickup, "", false},
		{StatusCancelled, EventCancel, "", false},
	}
	for _, tt := range tests {
		got, err := Next(tt.from, tt.ev)
		if tt.ok {
			require.NoError(t, err, "%s + %s", tt.from, tt.ev)
			assert.Equal(t, tt.to, got)
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrInvalidState, "%s + %s", tt.from, tt.ev)
	}
}

func TestComputeReward(t *testing.T) {
	ptr := func(n int) *int { return &n }

	r, err := ComputeReward(5.56, ptr(5))
	require.NoError(t, err)
	assert.Equal(t, "5", r.Bonus.String())
	assert.Equal(t, 17, r.Points) // ceil(11.12 + 5)

	r, err = ComputeReward(5.56, ptr(3))
	require.NoError(t, err)
	assert.True(t, r.Bonus.IsZero())
	assert.Equal(t, 12, r.Points)

	r, err = ComputeReward(2.5, nil)
	require.NoError(t, err)
	assert.True(t, r.Bonus.IsZero())
	assert.Equal(t, 5, r.Points)

	_, err = ComputeReward(1, ptr(0))
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = ComputeReward(1, ptr(6))
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusDelivered.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusEnRoute.IsTerminal())
	assert.True(t, StatusAssigned.IsActive())
	assert.False(t, StatusCancelled.IsActive())
}
