package stats

type UserStats struct {
	ReflectionCount int `json:"reflection_count"`
	CurrentStreak   int `json:"current_streak"`
	LongestStreak   int `json:"longest_streak"`
	TotalActiveDays int `json:"total_active_days"`
	BadgesCount     int `json:"badges_count"`
	ReferralCount   int `json:"referral_count"`
	RewardCredits   int `json:"reward_credits"`
}
