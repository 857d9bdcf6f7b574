package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"coachReflectAPI/internal/badge"
	"coachReflectAPI/internal/referral"
)

type ReferralService struct {
	db     *pgxpool.Pool
	badges *BadgeService
}

func NewReferralService(db *pgxpool.Pool, badges *BadgeService) *ReferralService {
	return &ReferralService{db: db, badges: badges}
}

// Attribute records that a new account signed up with a referral code. The
// unique constraint on referred_id enforces one referrer per user: a second
// attribution attempt is a silent no-op, never an overwrite. Returns nil
// when nothing was created.
func (s *ReferralService) Attribute(ctx context.Context, referredUserID uuid.UUID, code string) (*referral.Referral, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("referral code is required")
	}

	var referrerID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE referral_code = $1`, code).Scan(&referrerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invalid referral code")
		}
		return nil, fmt.Errorf("failed to resolve referral code: %w", err)
	}

	if referrerID == referredUserID {
		return nil, fmt.Errorf("users cannot refer themselves")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ref := &referral.Referral{
		ID:           uuid.New(),
		ReferrerID:   referrerID,
		ReferredID:   referredUserID,
		ReferralCode: code,
		Status:       referral.StatusPending,
		RewardType:   referral.RewardTypeCredits,
		RewardAmount: referral.DefaultRewardAmount,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO referrals (id, referrer_id, referred_id, referral_code, status, reward_type, reward_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (referred_id) DO NOTHING
		RETURNING created_at
	`, ref.ID, ref.ReferrerID, ref.ReferredID, ref.ReferralCode, ref.Status, ref.RewardType, ref.RewardAmount).Scan(&ref.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Already attributed to some referrer. Expected, not an error.
			log.Printf("Attribute: user %s already has a referral, skipping", referredUserID)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to create referral: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE users SET referred_by = $1, updated_at = NOW() WHERE id = $2 AND referred_by IS NULL`, referrerID, referredUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to stamp referred_by: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit referral attribution: %w", err)
	}

	log.Printf("Attribute: user %s referred by %s via code %s", referredUserID, referrerID, code)
	return ref, nil
}

// Settle converts the referred user's pending referral after the qualifying
// action (subscribing). The credit and the status transition to rewarded
// commit together in one transaction under a row lock, so settling twice
// credits the referrer exactly once. Transient store failures retry with
// exponential backoff; an exhausted retry surfaces loudly because an
// uncredited referral is a user-visible financial discrepancy.
func (s *ReferralService) Settle(ctx context.Context, referredUserID uuid.UUID) (*referral.Referral, error) {
	var settled *referral.Referral

	op := func() error {
		ref, err := s.settleOnce(ctx, referredUserID)
		if err != nil {
			log.Printf("Settle: attempt failed for referred user %s: %v", referredUserID, err)
			return err
		}
		settled = ref
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 15 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, 4), ctx)); err != nil {
		return nil, fmt.Errorf("referral settlement failed for user %s: %w", referredUserID, err)
	}

	if settled == nil {
		return nil, nil
	}

	referralsRewarded.Inc()
	referralCreditsGranted.Add(float64(settled.RewardAmount))

	// Referral badges for the referrer ride on the converted count.
	var converted int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM referrals WHERE referrer_id = $1 AND status = 'rewarded'`, settled.ReferrerID).Scan(&converted); err == nil {
		if _, err := s.badges.Evaluate(ctx, settled.ReferrerID, badge.MetricReferralCount, converted); err != nil {
			log.Printf("Settle: referral badge evaluation failed for %s: %v", settled.ReferrerID, err)
		}
	}

	return settled, nil
}

// settleOnce is the single settlement path. There is deliberately no
// fallback that re-reads and re-increments the counter outside the
// transaction: the credit and the status flip either both commit or
// neither does.
func (s *ReferralService) settleOnce(ctx context.Context, referredUserID uuid.UUID) (*referral.Referral, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ref := &referral.Referral{}
	err = tx.QueryRow(ctx, `
		SELECT id, referrer_id, referred_id, referral_code, status, reward_type, reward_amount, created_at, completed_at
		FROM referrals
		WHERE referred_id = $1
		FOR UPDATE
	`, referredUserID).Scan(
		&ref.ID,
		&ref.ReferrerID,
		&ref.ReferredID,
		&ref.ReferralCode,
		&ref.Status,
		&ref.RewardType,
		&ref.RewardAmount,
		&ref.CreatedAt,
		&ref.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Not every user was referred.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock referral row: %w", err)
	}

	if ref.Status.Settled() {
		log.Printf("Settle: referral %s already %s, skipping", ref.ID, ref.Status)
		return nil, nil
	}
	if !ref.Status.CanAdvanceTo(referral.StatusRewarded) {
		return nil, fmt.Errorf("referral %s cannot advance from status %s", ref.ID, ref.Status)
	}

	_, err = tx.Exec(ctx, `UPDATE users SET reward_credits = reward_credits + $1, updated_at = NOW() WHERE id = $2`, ref.RewardAmount, ref.ReferrerID)
	if err != nil {
		return nil, fmt.Errorf("failed to credit referrer: %w", err)
	}

	now := time.Now()
	_, err = tx.Exec(ctx, `UPDATE referrals SET status = $1, completed_at = $2 WHERE id = $3`, referral.StatusRewarded, now, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark referral rewarded: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}

	ref.Status = referral.StatusRewarded
	ref.CompletedAt = &now
	log.Printf("Settle: referral %s rewarded, %d credits to %s", ref.ID, ref.RewardAmount, ref.ReferrerID)
	return ref, nil
}

// GetStats returns the caller's referral code and conversion counters.
func (s *ReferralService) GetStats(ctx context.Context, clerkID string) (*referral.Stats, error) {
	query := `
	SELECT
		u.referral_code,
		COUNT(r.id) AS total_referred,
		COUNT(r.id) FILTER (WHERE r.status = 'rewarded') AS converted,
		COALESCE(SUM(r.reward_amount) FILTER (WHERE r.status = 'rewarded'), 0) AS credits_earned
	FROM users u
	LEFT JOIN referrals r ON r.referrer_id = u.id
	WHERE u.clerk_id = $1
	GROUP BY u.referral_code
	`

	st := &referral.Stats{}
	err := s.db.QueryRow(ctx, query, clerkID).Scan(&st.ReferralCode, &st.TotalReferred, &st.Converted, &st.CreditsEarned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get referral stats: %w", err)
	}

	return st, nil
}
