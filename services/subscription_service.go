package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"coachReflectAPI/internal/types/subscription"
)

type SubscriptionService struct {
	db *pgxpool.Pool
}

func NewSubscriptionService(db *pgxpool.Pool) *SubscriptionService {
	return &SubscriptionService{db: db}
}

// UpsertSubscription writes the local mirror of a Stripe subscription,
// keyed on the Stripe subscription ID so replayed webhook events converge
// on the same row.
func (s *SubscriptionService) UpsertSubscription(ctx context.Context, sub *subscription.Subscription) error {
	query := `
	INSERT INTO subscriptions (id, user_id, stripe_customer_id, stripe_subscription_id, stripe_price_id, status, current_period_end)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (stripe_subscription_id)
	DO UPDATE SET
		stripe_customer_id = EXCLUDED.stripe_customer_id,
		stripe_price_id = EXCLUDED.stripe_price_id,
		status = EXCLUDED.status,
		current_period_end = EXCLUDED.current_period_end,
		updated_at = NOW()
	`

	_, err := s.db.Exec(ctx, query,
		uuid.New(),
		sub.UserID,
		sub.StripeCustomerID,
		sub.StripeSubscriptionID,
		sub.StripePriceID,
		sub.Status,
		sub.CurrentPeriodEnd,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// UpdateSubscriptionStatus refreshes status fields for a subscription we
// already know about. Unknown subscriptions are ignored; Stripe replays
// events for customers that may predate this system.
func (s *SubscriptionService) UpdateSubscriptionStatus(ctx context.Context, sub *subscription.Subscription) error {
	query := `
	UPDATE subscriptions
	SET status = $2, stripe_price_id = COALESCE(NULLIF($3, ''), stripe_price_id), current_period_end = $4, updated_at = NOW()
	WHERE stripe_subscription_id = $1
	`

	_, err := s.db.Exec(ctx, query, sub.StripeSubscriptionID, sub.Status, sub.StripePriceID, sub.CurrentPeriodEnd)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

func (s *SubscriptionService) GetSubscription(ctx context.Context, clerkID string) (*subscription.Subscription, error) {
	query := `
	SELECT s.id, s.user_id, s.stripe_customer_id, s.stripe_subscription_id, s.stripe_price_id, s.status, s.current_period_end, s.created_at, s.updated_at
	FROM subscriptions s
	JOIN users u ON u.id = s.user_id
	WHERE u.clerk_id = $1
	ORDER BY s.updated_at DESC
	LIMIT 1
	`

	sub := &subscription.Subscription{}
	err := s.db.QueryRow(ctx, query, clerkID).Scan(
		&sub.ID,
		&sub.UserID,
		&sub.StripeCustomerID,
		&sub.StripeSubscriptionID,
		&sub.StripePriceID,
		&sub.Status,
		&sub.CurrentPeriodEnd,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return sub, nil
}
