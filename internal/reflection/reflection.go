package reflection

import (
	"time"

	"github.com/google/uuid"

	"coachReflectAPI/internal/streak"
)

type Reflection struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	SessionDate time.Time `json:"session_date" db:"session_date"`
	WentWell    string    `json:"went_well" db:"went_well"`
	ToImprove   string    `json:"to_improve" db:"to_improve"`
	ActionItems []string  `json:"action_items" db:"action_items"`
	Mood        int       `json:"mood" db:"mood"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type CreateReflectionRequest struct {
	SessionDate string   `json:"sessionDate,omitempty"`
	WentWell    string   `json:"wentWell" validate:"required"`
	ToImprove   string   `json:"toImprove,omitempty"`
	ActionItems []string `json:"actionItems,omitempty"`
	Mood        int      `json:"mood,omitempty"`
}

type UpdateReflectionRequest struct {
	WentWell    string   `json:"wentWell,omitempty"`
	ToImprove   string   `json:"toImprove,omitempty"`
	ActionItems []string `json:"actionItems,omitempty"`
	// Pointer so an explicit mood of 0 is distinguishable from "not sent".
	Mood *int `json:"mood,omitempty"`
}

// CreateReflectionResponse carries the saved reflection plus whatever the
// engagement subsystem managed to apply. Engagement is nil when the streak
// or badge updates failed; the reflection save itself is never blocked on
// them.
type CreateReflectionResponse struct {
	Reflection *Reflection            `json:"reflection"`
	Engagement *streak.ActivityResult `json:"engagement,omitempty"`
}
