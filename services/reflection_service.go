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
	"coachReflectAPI/internal/reflection"
)

type ReflectionService struct {
	db      *pgxpool.Pool
	streaks *StreakService
	badges  *BadgeService
}

func NewReflectionService(db *pgxpool.Pool, streaks *StreakService, badges *BadgeService) *ReflectionService {
	return &ReflectionService{db: db, streaks: streaks, badges: badges}
}

// CreateReflection saves the reflection and then feeds the engagement
// subsystem (streak, reflection-count badges). The save must succeed even
// when the engagement updates fail; those failures are logged and the
// response simply omits the engagement payload.
func (s *ReflectionService) CreateReflection(ctx context.Context, clerkID string, req *reflection.CreateReflectionRequest) (*reflection.CreateReflectionResponse, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	if req.WentWell == "" {
		return nil, fmt.Errorf("wentWell is required")
	}
	if req.Mood < 0 || req.Mood > 10 {
		return nil, fmt.Errorf("mood must be between 0 and 10")
	}

	sessionDate := time.Now()
	if req.SessionDate != "" {
		sessionDate, err = time.Parse("2006-01-02", req.SessionDate)
		if err != nil {
			return nil, fmt.Errorf("invalid session date %q, expected YYYY-MM-DD", req.SessionDate)
		}
	}

	r := &reflection.Reflection{
		ID:          uuid.New(),
		UserID:      userID,
		SessionDate: sessionDate,
		WentWell:    req.WentWell,
		ToImprove:   req.ToImprove,
		ActionItems: req.ActionItems,
		Mood:        req.Mood,
	}
	if r.ActionItems == nil {
		r.ActionItems = []string{}
	}

	query := `
	INSERT INTO reflections (id, user_id, session_date, went_well, to_improve, action_items, mood)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING created_at, updated_at
	`

	err = s.db.QueryRow(ctx, query, r.ID, r.UserID, r.SessionDate, r.WentWell, r.ToImprove, r.ActionItems, r.Mood).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create reflection: %w", err)
	}

	resp := &reflection.CreateReflectionResponse{Reflection: r}

	engagement, err := s.streaks.RecordActivity(ctx, clerkID)
	if err != nil {
		log.Printf("CreateReflection: streak update failed for %s: %v", clerkID, err)
		return resp, nil
	}

	var count int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM reflections WHERE user_id = $1`, userID).Scan(&count); err != nil {
		log.Printf("CreateReflection: reflection count failed for %s: %v", clerkID, err)
	} else if earned, err := s.badges.Evaluate(ctx, userID, badge.MetricReflectionCount, count); err != nil {
		log.Printf("CreateReflection: badge evaluation failed for %s: %v", clerkID, err)
	} else {
		engagement.BadgesEarned = append(engagement.BadgesEarned, earned...)
	}

	resp.Engagement = engagement
	return resp, nil
}

// ActionItemTotal counts every action item across the user's stored
// reflections. Task badges are evaluated against this total, never against a
// client-reported figure.
func (s *ReflectionService) ActionItemTotal(ctx context.Context, userID uuid.UUID) (int, error) {
	var total int
	err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(cardinality(action_items)), 0) FROM reflections WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count action items: %w", err)
	}
	return total, nil
}

func (s *ReflectionService) GetReflection(ctx context.Context, clerkID string, id uuid.UUID) (*reflection.Reflection, error) {
	query := `
	SELECT r.id, r.user_id, r.session_date, r.went_well, r.to_improve, r.action_items, r.mood, r.created_at, r.updated_at
	FROM reflections r
	JOIN users u ON u.id = r.user_id
	WHERE r.id = $1 AND u.clerk_id = $2
	`

	r := &reflection.Reflection{}
	err := s.db.QueryRow(ctx, query, id, clerkID).Scan(
		&r.ID,
		&r.UserID,
		&r.SessionDate,
		&r.WentWell,
		&r.ToImprove,
		&r.ActionItems,
		&r.Mood,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("reflection not found")
		}
		return nil, fmt.Errorf("failed to get reflection: %w", err)
	}

	return r, nil
}

func (s *ReflectionService) ListReflections(ctx context.Context, clerkID string, limit, offset int) ([]*reflection.Reflection, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `
	SELECT r.id, r.user_id, r.session_date, r.went_well, r.to_improve, r.action_items, r.mood, r.created_at, r.updated_at
	FROM reflections r
	JOIN users u ON u.id = r.user_id
	WHERE u.clerk_id = $1
	ORDER BY r.session_date DESC, r.created_at DESC
	LIMIT $2 OFFSET $3
	`

	rows, err := s.db.Query(ctx, query, clerkID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reflections: %w", err)
	}
	defer rows.Close()

	var reflections []*reflection.Reflection
	for rows.Next() {
		r := &reflection.Reflection{}
		if err := rows.Scan(
			&r.ID,
			&r.UserID,
			&r.SessionDate,
			&r.WentWell,
			&r.ToImprove,
			&r.ActionItems,
			&r.Mood,
			&r.CreatedAt,
			&r.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reflection: %w", err)
		}
		reflections = append(reflections, r)
	}

	return reflections, rows.Err()
}

func (s *ReflectionService) UpdateReflection(ctx context.Context, clerkID string, id uuid.UUID, req *reflection.UpdateReflectionRequest) (*reflection.Reflection, error) {
	if req.Mood != nil && (*req.Mood < 0 || *req.Mood > 10) {
		return nil, fmt.Errorf("mood must be between 0 and 10")
	}

	query := `
	UPDATE reflections r
	SET
		went_well = COALESCE(NULLIF($3, ''), r.went_well),
		to_improve = COALESCE(NULLIF($4, ''), r.to_improve),
		action_items = COALESCE($5, r.action_items),
		mood = COALESCE($6, r.mood),
		updated_at = NOW()
	FROM users u
	WHERE r.id = $1 AND r.user_id = u.id AND u.clerk_id = $2
	`

	result, err := s.db.Exec(ctx, query, id, clerkID, req.WentWell, req.ToImprove, req.ActionItems, req.Mood)
	if err != nil {
		return nil, fmt.Errorf("failed to update reflection: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, fmt.Errorf("reflection not found")
	}

	return s.GetReflection(ctx, clerkID, id)
}

func (s *ReflectionService) DeleteReflection(ctx context.Context, clerkID string, id uuid.UUID) error {
	query := `
	DELETE FROM reflections r
	USING users u
	WHERE r.id = $1 AND r.user_id = u.id AND u.clerk_id = $2
	`

	result, err := s.db.Exec(ctx, query, id, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete reflection: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("reflection not found")
	}

	return nil
}
