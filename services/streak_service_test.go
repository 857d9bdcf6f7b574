package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordActivitySameDayAppliesOnce(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserService(db)
	streaks := NewStreakService(db, NewBadgeService(db))
	ctx := context.Background()

	u := createTestUser(t, users)

	first, err := streaks.RecordActivity(ctx, u.ClerkID)
	require.NoError(t, err)
	assert.True(t, first.Advanced)
	assert.Equal(t, 1, first.CurrentStreak)
	assert.Equal(t, 1, first.TotalActiveDays)

	second, err := streaks.RecordActivity(ctx, u.ClerkID)
	require.NoError(t, err)
	assert.False(t, second.Advanced, "a retried same-day event must not count twice")
	assert.Equal(t, 1, second.CurrentStreak)
	assert.Equal(t, 1, second.TotalActiveDays)
}

func TestRecordActivityConsecutiveDays(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserService(db)
	streaks := NewStreakService(db, NewBadgeService(db))
	ctx := context.Background()

	u := createTestUser(t, users)

	clock := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	streaks.now = func() time.Time { return clock }

	res, err := streaks.RecordActivity(ctx, u.ClerkID)
	require.NoError(t, err)
	require.Equal(t, 1, res.CurrentStreak)

	clock = clock.AddDate(0, 0, 1)
	res, err = streaks.RecordActivity(ctx, u.ClerkID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.CurrentStreak)
	assert.Equal(t, 2, res.LongestStreak)
	assert.Equal(t, 2, res.TotalActiveDays)

	// Skip two days, streak resets but longest survives.
	clock = clock.AddDate(0, 0, 3)
	res, err = streaks.RecordActivity(ctx, u.ClerkID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CurrentStreak)
	assert.Equal(t, 2, res.LongestStreak)
	assert.Equal(t, 3, res.TotalActiveDays)
}

func TestRecordActivityGrantsStreakBadge(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserService(db)
	streaks := NewStreakService(db, NewBadgeService(db))
	ctx := context.Background()

	u := createTestUser(t, users)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	streaks.now = func() time.Time { return clock }

	var earnedNames []string
	for i := 0; i < 7; i++ {
		res, err := streaks.RecordActivity(ctx, u.ClerkID)
		require.NoError(t, err)
		for _, b := range res.BadgesEarned {
			earnedNames = append(earnedNames, b.Name)
		}
		clock = clock.AddDate(0, 0, 1)
	}

	assert.Contains(t, earnedNames, "Week Streak", "seven consecutive days earns the 7-day streak badge")
}

func TestGetStreakZeroValuedForNewUser(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserService(db)
	streaks := NewStreakService(db, NewBadgeService(db))

	u := createTestUser(t, users)

	st, err := streaks.GetStreak(context.Background(), u.ClerkID)
	require.NoError(t, err)
	assert.Equal(t, 0, st.CurrentStreak)
	assert.Equal(t, 0, st.TotalActiveDays)
	assert.Nil(t, st.LastActiveDate)
}

func TestRecordActivityUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	streaks := NewStreakService(db, NewBadgeService(db))

	_, err := streaks.RecordActivity(context.Background(), "user_does_not_exist")
	assert.Error(t, err)
}
