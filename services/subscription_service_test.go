package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coachReflectAPI/internal/types/subscription"
)

func TestUpsertSubscriptionConvergesOnReplay(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserService(db)
	subs := NewSubscriptionService(db)
	ctx := context.Background()

	u := createTestUser(t, users)
	subID := "sub_test_" + uuid.NewString()[:8]

	periodEnd := time.Now().Add(30 * 24 * time.Hour).Truncate(time.Second)
	sub := &subscription.Subscription{
		UserID:               u.ID,
		StripeCustomerID:     "cus_test_1",
		StripeSubscriptionID: subID,
		StripePriceID:        "price_monthly",
		Status:               "active",
		CurrentPeriodEnd:     periodEnd,
	}

	require.NoError(t, subs.UpsertSubscription(ctx, sub))
	// Replayed event lands on the same row.
	require.NoError(t, subs.UpsertSubscription(ctx, sub))

	got, err := subs.GetSubscription(ctx, u.ClerkID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, subID, got.StripeSubscriptionID)
	assert.Equal(t, "active", got.Status)
}

func TestUpdateSubscriptionStatus(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserService(db)
	subs := NewSubscriptionService(db)
	ctx := context.Background()

	u := createTestUser(t, users)
	subID := "sub_test_" + uuid.NewString()[:8]

	require.NoError(t, subs.UpsertSubscription(ctx, &subscription.Subscription{
		UserID:               u.ID,
		StripeCustomerID:     "cus_test_2",
		StripeSubscriptionID: subID,
		StripePriceID:        "price_monthly",
		Status:               "active",
		CurrentPeriodEnd:     time.Now().Add(24 * time.Hour),
	}))

	require.NoError(t, subs.UpdateSubscriptionStatus(ctx, &subscription.Subscription{
		StripeSubscriptionID: subID,
		StripePriceID:        "price_monthly",
		Status:               "canceled",
		CurrentPeriodEnd:     time.Now(),
	}))

	got, err := subs.GetSubscription(ctx, u.ClerkID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "canceled", got.Status)
}

func TestUpdateSubscriptionStatusUnknownIsIgnored(t *testing.T) {
	db := setupTestDB(t)
	subs := NewSubscriptionService(db)

	err := subs.UpdateSubscriptionStatus(context.Background(), &subscription.Subscription{
		StripeSubscriptionID: "sub_never_seen",
		Status:               "canceled",
		CurrentPeriodEnd:     time.Now(),
	})
	assert.NoError(t, err)
}

func TestGetSubscriptionNoneIsNil(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserService(db)
	subs := NewSubscriptionService(db)

	u := createTestUser(t, users)

	got, err := subs.GetSubscription(context.Background(), u.ClerkID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
