package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"coachReflectAPI/internal/stats"
	"coachReflectAPI/internal/user"
)

type UserService struct {
	db *pgxpool.Pool
}

func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

// Unambiguous charset for referral codes (no 0/O, 1/I).
const referralCodeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateReferralCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate referral code: %w", err)
	}
	for i, b := range buf {
		buf[i] = referralCodeCharset[int(b)%len(referralCodeCharset)]
	}
	return string(buf), nil
}

func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	code, err := generateReferralCode()
	if err != nil {
		return nil, err
	}

	u := &user.User{
		ID:           uuid.New().String(),
		ClerkID:      req.ClerkID,
		Email:        req.Email,
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		ImageURL:     req.ImageURL,
		Timezone:     "UTC",
		ReferralCode: code,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	query := `
	INSERT INTO users (id, clerk_id, email, username, first_name, last_name, image_url, timezone, referral_code, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING id, clerk_id, email, username, first_name, last_name, image_url, email_verified, timezone, referral_code, reward_credits, created_at, updated_at
	`

	err = s.db.QueryRow(
		ctx,
		query,
		u.ID,
		u.ClerkID,
		u.Email,
		u.Username,
		u.FirstName,
		u.LastName,
		u.ImageURL,
		u.Timezone,
		u.ReferralCode,
		u.CreatedAt,
		u.UpdatedAt,
	).Scan(
		&u.ID,
		&u.ClerkID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.ImageURL,
		&u.EmailVerified,
		&u.Timezone,
		&u.ReferralCode,
		&u.RewardCredits,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	query := `
	SELECT id, clerk_id, email, username, first_name, last_name, image_url, email_verified, timezone, sport, referral_code, referred_by, reward_credits, created_at, updated_at
	FROM users
	WHERE clerk_id = $1
	`

	u := &user.User{}
	err := s.db.QueryRow(ctx, query, clerkID).Scan(
		&u.ID,
		&u.ClerkID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.ImageURL,
		&u.EmailVerified,
		&u.Timezone,
		&u.Sport,
		&u.ReferralCode,
		&u.ReferredBy,
		&u.RewardCredits,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

// GetUserIDByClerkID resolves the internal UUID for an authenticated Clerk
// subject. Shared by services that key rows on the internal ID.
func (s *UserService) GetUserIDByClerkID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("user not found")
		}
		return uuid.Nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return id, nil
}

func (s *UserService) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error) {
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return nil, fmt.Errorf("invalid timezone: %s", req.Timezone)
		}
	}

	query := `
	UPDATE users
	SET
		username = COALESCE(NULLIF($2, ''), username),
		first_name = COALESCE(NULLIF($3, ''), first_name),
		last_name = COALESCE(NULLIF($4, ''), last_name),
		image_url = COALESCE(NULLIF($5, ''), image_url),
		timezone = COALESCE(NULLIF($6, ''), timezone),
		sport = COALESCE(NULLIF($7, ''), sport),
		updated_at = NOW()
	WHERE clerk_id = $1
	`

	result, err := s.db.Exec(ctx, query, clerkID, req.Username, req.FirstName, req.LastName, req.ImageURL, req.Timezone, req.Sport)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, fmt.Errorf("user not found")
	}

	return s.GetUserByClerkID(ctx, clerkID)
}

func (s *UserService) UpdateEmailVerification(ctx context.Context, clerkID string, verified bool) error {
	_, err := s.db.Exec(ctx, `UPDATE users SET email_verified = $2, updated_at = NOW() WHERE clerk_id = $1`, clerkID, verified)
	if err != nil {
		return fmt.Errorf("failed to update email verification: %w", err)
	}
	return nil
}

// DeleteUserByClerkID removes the account and its engagement data. Child
// tables are independent of each other, so their deletes run concurrently;
// the user row goes last because everything references it.
func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	userID, err := s.GetUserIDByClerkID(ctx, clerkID)
	if err != nil {
		return err
	}

	childTables := []string{
		"reflections",
		"streaks",
		"user_badges",
		"chat_messages",
		"subscriptions",
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, table := range childTables {
		table := table
		query := fmt.Sprintf("DELETE FROM %s WHERE user_id = $1", table)
		g.Go(func() error {
			if _, err := s.db.Exec(gctx, query, userID); err != nil {
				return fmt.Errorf("failed to delete from %s: %w", table, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		// Both sides of any referral edge touching this account.
		if _, err := s.db.Exec(gctx, `DELETE FROM referrals WHERE referred_id = $1 OR referrer_id = $1`, userID); err != nil {
			return fmt.Errorf("failed to delete referrals: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	log.Printf("Deleted account %s (%s)", clerkID, userID)
	return nil
}

func (s *UserService) GetUserStats(ctx context.Context, clerkID string) (*stats.UserStats, error) {
	query := `
	SELECT
		(SELECT COUNT(*) FROM reflections r WHERE r.user_id = u.id) AS reflection_count,
		COALESCE(s.current_streak, 0),
		COALESCE(s.longest_streak, 0),
		COALESCE(s.total_active_days, 0),
		(SELECT COUNT(*) FROM user_badges ub WHERE ub.user_id = u.id) AS badges_count,
		(SELECT COUNT(*) FROM referrals rf WHERE rf.referrer_id = u.id) AS referral_count,
		u.reward_credits
	FROM users u
	LEFT JOIN streaks s ON s.user_id = u.id
	WHERE u.clerk_id = $1
	`

	st := &stats.UserStats{}
	err := s.db.QueryRow(ctx, query, clerkID).Scan(
		&st.ReflectionCount,
		&st.CurrentStreak,
		&st.LongestStreak,
		&st.TotalActiveDays,
		&st.BadgesCount,
		&st.ReferralCount,
		&st.RewardCredits,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	return st, nil
}
