package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"coachReflectAPI/internal/badge"
	"coachReflectAPI/internal/streak"
)

type StreakService struct {
	db     *pgxpool.Pool
	badges *BadgeService

	// now is swappable so tests can pin the clock.
	now func() time.Time
}

func NewStreakService(db *pgxpool.Pool, badges *BadgeService) *StreakService {
	return &StreakService{
		db:     db,
		badges: badges,
		now:    time.Now,
	}
}

// RecordActivity counts one qualifying activity event for the user's current
// calendar day (in the user's configured timezone). The per-user streak row
// is updated inside a single transaction under a row lock, so concurrent
// same-day events from independent request handlers apply at most once.
// Newly crossed streak and active-day badge thresholds are returned so the
// caller can notify the user.
func (s *StreakService) RecordActivity(ctx context.Context, clerkID string) (*streak.ActivityResult, error) {
	var userID uuid.UUID
	var tzName string
	err := s.db.QueryRow(ctx, `SELECT id, timezone FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID, &tzName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	loc, err := time.LoadLocation(tzName)
	if err != nil {
		log.Printf("RecordActivity: invalid timezone %q for user %s, falling back to UTC", tzName, clerkID)
		loc = time.UTC
	}
	today := s.now().In(loc)

	st, advanced, err := s.advance(ctx, userID, today)
	if err != nil {
		return nil, err
	}

	result := &streak.ActivityResult{
		CurrentStreak:   st.CurrentStreak,
		LongestStreak:   st.LongestStreak,
		TotalActiveDays: st.TotalActiveDays,
		Advanced:        advanced,
	}

	if !advanced {
		streakActivities.WithLabelValues("same_day").Inc()
		return result, nil
	}
	streakActivities.WithLabelValues("advanced").Inc()

	// Badge grants are idempotent, so they run outside the streak
	// transaction. A failure here must not undo the counted day.
	for metric, value := range map[string]int{
		badge.MetricStreakDays: st.CurrentStreak,
		badge.MetricActiveDays: st.TotalActiveDays,
	} {
		earned, err := s.badges.Evaluate(ctx, userID, metric, value)
		if err != nil {
			log.Printf("RecordActivity: badge evaluation failed for %s (%s): %v", clerkID, metric, err)
			continue
		}
		result.BadgesEarned = append(result.BadgesEarned, earned...)
	}

	return result, nil
}

// GetStreak returns the user's streak row, zero-valued when no activity has
// ever been recorded.
func (s *StreakService) GetStreak(ctx context.Context, clerkID string) (*streak.Streak, error) {
	query := `
	SELECT s.id, s.user_id, s.current_streak, s.longest_streak, s.last_active_date, s.total_active_days, s.created_at, s.updated_at
	FROM streaks s
	JOIN users u ON u.id = s.user_id
	WHERE u.clerk_id = $1
	`

	st := &streak.Streak{}
	err := s.db.QueryRow(ctx, query, clerkID).Scan(
		&st.ID,
		&st.UserID,
		&st.CurrentStreak,
		&st.LongestStreak,
		&st.LastActiveDate,
		&st.TotalActiveDays,
		&st.CreatedAt,
		&st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &streak.Streak{}, nil
		}
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}

	return st, nil
}

// advance performs the atomic read-modify-write on the per-user row. The
// FOR UPDATE lock serializes same-user concurrent events; cross-user events
// never contend because each user owns exactly one row.
func (s *StreakService) advance(ctx context.Context, userID uuid.UUID, today time.Time) (*streak.Streak, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Make sure the row exists before locking it, so first-ever activity
	// and concurrent first-ever activity take the same path.
	_, err = tx.Exec(ctx, `INSERT INTO streaks (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure streak row: %w", err)
	}

	st := &streak.Streak{}
	err = tx.QueryRow(ctx, `
		SELECT id, user_id, current_streak, longest_streak, last_active_date, total_active_days
		FROM streaks
		WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(
		&st.ID,
		&st.UserID,
		&st.CurrentStreak,
		&st.LongestStreak,
		&st.LastActiveDate,
		&st.TotalActiveDays,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock streak row: %w", err)
	}

	advanced := st.Advance(today)
	if advanced {
		_, err = tx.Exec(ctx, `
			UPDATE streaks
			SET current_streak = $2, longest_streak = $3, last_active_date = $4, total_active_days = $5, updated_at = NOW()
			WHERE user_id = $1
		`, userID, st.CurrentStreak, st.LongestStreak, st.LastActiveDate, st.TotalActiveDays)
		if err != nil {
			return nil, false, fmt.Errorf("failed to update streak: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit streak update: %w", err)
	}

	return st, advanced, nil
}
