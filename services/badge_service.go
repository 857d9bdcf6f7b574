package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"coachReflectAPI/internal/badge"
)

type BadgeService struct {
	db *pgxpool.Pool

	// The catalog is immutable after seeding, so it is loaded once and
	// reused for the in-memory eligibility pass.
	mu      sync.Mutex
	catalog []*badge.Badge
}

func NewBadgeService(db *pgxpool.Pool) *BadgeService {
	return &BadgeService{db: db}
}

func (s *BadgeService) loadCatalog(ctx context.Context) ([]*badge.Badge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalog != nil {
		return s.catalog, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, name, description, category, rarity, requirement_metric, requirement_value, created_at
		FROM badges
		ORDER BY requirement_value
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load badge catalog: %w", err)
	}
	defer rows.Close()

	var catalog []*badge.Badge
	for rows.Next() {
		b := &badge.Badge{}
		if err := rows.Scan(
			&b.ID,
			&b.Name,
			&b.Description,
			&b.Category,
			&b.Rarity,
			&b.RequirementMetric,
			&b.RequirementValue,
			&b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan badge catalog: %w", err)
		}
		catalog = append(catalog, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read badge catalog: %w", err)
	}

	s.catalog = catalog
	return catalog, nil
}

// Evaluate grants every badge on the supplied metric whose threshold the
// value meets, and returns only the badges inserted by this call. The
// insert is conditioned on non-existence, so concurrent evaluations of the
// same milestone are idempotent and a (user, badge) pair exists at most
// once. Badges the user already holds are not an error and not returned.
func (s *BadgeService) Evaluate(ctx context.Context, userID uuid.UUID, metric string, value int) ([]*badge.Badge, error) {
	if err := badge.ValidateMetric(metric); err != nil {
		return nil, err
	}
	if value < 0 {
		return nil, fmt.Errorf("metric value must be non-negative, got %d", value)
	}

	// Cheap in-memory pass first; most evaluations cross no threshold and
	// need no write attempt. The insert below stays authoritative.
	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	if len(badge.Eligible(catalog, metric, value)) == 0 {
		return nil, nil
	}

	query := `
	WITH granted AS (
		INSERT INTO user_badges (user_id, badge_id)
		SELECT $1, b.id
		FROM badges b
		WHERE b.requirement_metric = $2 AND b.requirement_value <= $3
		ON CONFLICT (user_id, badge_id) DO NOTHING
		RETURNING badge_id
	)
	SELECT b.id, b.name, b.description, b.category, b.rarity, b.requirement_metric, b.requirement_value, b.created_at
	FROM badges b
	JOIN granted g ON b.id = g.badge_id
	ORDER BY b.requirement_value
	`

	rows, err := s.db.Query(ctx, query, userID, metric, value)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate badges: %w", err)
	}
	defer rows.Close()

	var earned []*badge.Badge
	for rows.Next() {
		b := &badge.Badge{}
		if err := rows.Scan(
			&b.ID,
			&b.Name,
			&b.Description,
			&b.Category,
			&b.Rarity,
			&b.RequirementMetric,
			&b.RequirementValue,
			&b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		earned = append(earned, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read granted badges: %w", err)
	}

	if len(earned) > 0 {
		badgesAwarded.Add(float64(len(earned)))
		log.Printf("Badge evaluation: user %s earned %d badge(s) on %s=%d", userID, len(earned), metric, value)
	}

	return earned, nil
}

// GetBadges returns the full catalog with the user's earned status.
func (s *BadgeService) GetBadges(ctx context.Context, clerkID string) ([]*badge.BadgeWithStatus, error) {
	query := `
	SELECT
		b.id, b.name, b.description, b.category, b.rarity,
		b.requirement_metric, b.requirement_value, b.created_at,
		ub.earned_at
	FROM badges b
	LEFT JOIN user_badges ub
		ON b.id = ub.badge_id
		AND ub.user_id = (SELECT id FROM users WHERE clerk_id = $1)
	ORDER BY b.category, b.requirement_value
	`

	rows, err := s.db.Query(ctx, query, clerkID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch badges: %w", err)
	}
	defer rows.Close()

	var badges []*badge.BadgeWithStatus
	for rows.Next() {
		b := &badge.BadgeWithStatus{}
		if err := rows.Scan(
			&b.ID,
			&b.Name,
			&b.Description,
			&b.Category,
			&b.Rarity,
			&b.RequirementMetric,
			&b.RequirementValue,
			&b.CreatedAt,
			&b.EarnedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		b.Earned = b.EarnedAt != nil
		badges = append(badges, b)
	}

	return badges, rows.Err()
}

// MarkNotified flips the notified flag once the caller has delivered the
// earned-badge payload, so a badge is announced at most once.
func (s *BadgeService) MarkNotified(ctx context.Context, clerkID string, badgeIDs []uuid.UUID) error {
	if len(badgeIDs) == 0 {
		return nil
	}

	query := `
	UPDATE user_badges
	SET notified = TRUE
	WHERE user_id = (SELECT id FROM users WHERE clerk_id = $1)
	AND badge_id = ANY($2)
	`

	if _, err := s.db.Exec(ctx, query, clerkID, badgeIDs); err != nil {
		return fmt.Errorf("failed to mark badges notified: %w", err)
	}
	return nil
}
