package badge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMetric(t *testing.T) {
	for _, m := range []string{MetricReflectionCount, MetricTaskCount, MetricStreakDays, MetricActiveDays, MetricReferralCount} {
		assert.NoError(t, ValidateMetric(m))
	}
	assert.Error(t, ValidateMetric("login_count"))
	assert.Error(t, ValidateMetric(""))
}

func TestEligible(t *testing.T) {
	catalog := []*Badge{
		{Name: "First Steps", RequirementMetric: MetricReflectionCount, RequirementValue: 1},
		{Name: "Regular", RequirementMetric: MetricReflectionCount, RequirementValue: 10},
		{Name: "Committed", RequirementMetric: MetricReflectionCount, RequirementValue: 50},
		{Name: "Week Warrior", RequirementMetric: MetricStreakDays, RequirementValue: 7},
	}

	earned := Eligible(catalog, MetricReflectionCount, 10)
	require.Len(t, earned, 2)
	assert.Equal(t, "First Steps", earned[0].Name)
	assert.Equal(t, "Regular", earned[1].Name)
}

func TestEligibleIgnoresOtherMetrics(t *testing.T) {
	catalog := []*Badge{
		{Name: "Week Warrior", RequirementMetric: MetricStreakDays, RequirementValue: 7},
	}

	assert.Empty(t, Eligible(catalog, MetricReflectionCount, 100))
}

func TestEligibleBelowThreshold(t *testing.T) {
	catalog := []*Badge{
		{Name: "Regular", RequirementMetric: MetricReflectionCount, RequirementValue: 10},
	}

	assert.Empty(t, Eligible(catalog, MetricReflectionCount, 9))
	assert.Len(t, Eligible(catalog, MetricReflectionCount, 10), 1)
}
