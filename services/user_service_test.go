package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coachReflectAPI/internal/user"
)

func TestGenerateReferralCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := generateReferralCode()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		for _, c := range code {
			assert.Contains(t, referralCodeCharset, string(c))
		}
		seen[code] = true
	}
	// Collisions over 100 draws from a 32^6 space would point at a broken
	// generator.
	assert.Greater(t, len(seen), 95)
}

func TestGenerateReferralCodeAvoidsAmbiguousChars(t *testing.T) {
	for _, c := range "0O1I" {
		assert.False(t, strings.ContainsRune(referralCodeCharset, c))
	}
}

func TestCreateAndGetUser(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db)

	created := createTestUser(t, svc)
	assert.NotEmpty(t, created.ReferralCode)
	assert.Equal(t, "UTC", created.Timezone)
	assert.Equal(t, 0, created.RewardCredits)

	got, err := svc.GetUserByClerkID(context.Background(), created.ClerkID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.ReferralCode, got.ReferralCode)
	assert.Nil(t, got.ReferredBy)
}

func TestUpdateProfilePartial(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()

	created := createTestUser(t, svc)

	updated, err := svc.UpdateProfileByClerkID(ctx, created.ClerkID, &user.UpdateProfileRequest{Timezone: "Europe/Sofia", Sport: "tennis"})
	require.NoError(t, err)
	assert.Equal(t, "Europe/Sofia", updated.Timezone)
	assert.Equal(t, "tennis", updated.Sport)
	assert.Equal(t, created.Username, updated.Username, "empty fields keep their values")
}

func TestDeleteReferrerUnlinksReferredUsers(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserService(db)
	referrals := NewReferralService(db, NewBadgeService(db))
	ctx := context.Background()

	referrer := createTestUser(t, users)
	referred := createTestUser(t, users)

	referredID, err := users.GetUserIDByClerkID(ctx, referred.ClerkID)
	require.NoError(t, err)

	ref, err := referrals.Attribute(ctx, referredID, referrer.ReferralCode)
	require.NoError(t, err)
	require.NotNil(t, ref)

	// The referrer's account must delete cleanly even though another user
	// row points at it through referred_by.
	require.NoError(t, users.DeleteUserByClerkID(ctx, referrer.ClerkID))

	got, err := users.GetUserByClerkID(ctx, referred.ClerkID)
	require.NoError(t, err)
	assert.Nil(t, got.ReferredBy, "referred_by is cleared when the referrer is deleted")
}

func TestUpdateProfileRejectsBadTimezone(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db)

	created := createTestUser(t, svc)

	_, err := svc.UpdateProfileByClerkID(context.Background(), created.ClerkID, &user.UpdateProfileRequest{Timezone: "Not/AZone"})
	assert.Error(t, err)
}
