package referral

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSignedUp  Status = "signed_up"
	StatusCompleted Status = "completed"
	StatusRewarded  Status = "rewarded"
)

// Default reward credited to the referrer once the referred user converts.
const (
	RewardTypeCredits   = "credits"
	DefaultRewardAmount = 30
)

var statusOrder = map[Status]int{
	StatusPending:   0,
	StatusSignedUp:  1,
	StatusCompleted: 2,
	StatusRewarded:  3,
}

// CanAdvanceTo enforces the monotonic status machine: a referral moves
// forward through pending -> signed_up -> completed -> rewarded and never
// regresses.
func (s Status) CanAdvanceTo(next Status) bool {
	cur, okCur := statusOrder[s]
	nxt, okNext := statusOrder[next]
	if !okCur || !okNext {
		return false
	}
	return nxt > cur
}

// Settled reports whether the referral has already been converted; settling
// it again must be a no-op.
func (s Status) Settled() bool {
	return s == StatusCompleted || s == StatusRewarded
}

type Referral struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	ReferrerID   uuid.UUID  `json:"referrer_id" db:"referrer_id"`
	ReferredID   uuid.UUID  `json:"referred_id" db:"referred_id"`
	ReferralCode string     `json:"referral_code" db:"referral_code"`
	Status       Status     `json:"status" db:"status"`
	RewardType   string     `json:"reward_type" db:"reward_type"`
	RewardAmount int        `json:"reward_amount" db:"reward_amount"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	CompletedAt  *time.Time `json:"completed_at" db:"completed_at"`
}

type Stats struct {
	ReferralCode  string `json:"referralCode"`
	TotalReferred int    `json:"totalReferred"`
	Converted     int    `json:"converted"`
	CreditsEarned int    `json:"creditsEarned"`
}
