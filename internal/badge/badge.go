package badge

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Metrics that can drive badge requirements. New badges are seeded as data
// against one of these; adding a badge is not a code change.
const (
	MetricReflectionCount = "reflection_count"
	MetricTaskCount       = "task_count"
	MetricStreakDays      = "streak_days"
	MetricActiveDays      = "active_days"
	MetricReferralCount   = "referral_count"
)

var validMetrics = map[string]bool{
	MetricReflectionCount: true,
	MetricTaskCount:       true,
	MetricStreakDays:      true,
	MetricActiveDays:      true,
	MetricReferralCount:   true,
}

// ValidateMetric rejects metrics the catalog does not know about.
func ValidateMetric(metric string) error {
	if !validMetrics[metric] {
		return fmt.Errorf("unknown badge metric: %s", metric)
	}
	return nil
}

type Badge struct {
	ID                uuid.UUID `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	Description       string    `json:"description" db:"description"`
	Category          string    `json:"category" db:"category"`
	Rarity            string    `json:"rarity" db:"rarity"`
	RequirementMetric string    `json:"requirement_metric" db:"requirement_metric"`
	RequirementValue  int       `json:"requirement_value" db:"requirement_value"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

type UserBadge struct {
	ID       uuid.UUID `json:"id" db:"id"`
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	BadgeID  uuid.UUID `json:"badge_id" db:"badge_id"`
	EarnedAt time.Time `json:"earned_at" db:"earned_at"`
	Notified bool      `json:"notified" db:"notified"`
}

type BadgeWithStatus struct {
	Badge
	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`
}

// Eligible filters the catalog down to badges whose requirement is met by
// the supplied metric value.
func Eligible(catalog []*Badge, metric string, value int) []*Badge {
	var out []*Badge
	for _, b := range catalog {
		if b.RequirementMetric == metric && b.RequirementValue <= value {
			out = append(out, b)
		}
	}
	return out
}
