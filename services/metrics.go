package services

import "github.com/prometheus/client_golang/prometheus"

var (
	badgesAwarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "badges_awarded_total",
			Help: "Total number of badges granted to users",
		},
	)
	referralsRewarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "referrals_rewarded_total",
			Help: "Total number of referrals settled and credited",
		},
	)
	referralCreditsGranted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "referral_credits_granted_total",
			Help: "Total reward credits granted to referrers",
		},
	)
	streakActivities = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streak_activities_total",
			Help: "Qualifying activity events by outcome",
		},
		[]string{"outcome"},
	)
)

// InitMetrics registers the service-level metrics. Call this from main.go
func InitMetrics() {
	prometheus.MustRegister(badgesAwarded)
	prometheus.MustRegister(referralsRewarded)
	prometheus.MustRegister(referralCreditsGranted)
	prometheus.MustRegister(streakActivities)
}
