package entitlements

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ManuelReschke/DocuChat/app/models"
)

func planHolder(planID uint, status string) *models.User {
	return &models.User{PlanID: &planID, SubscriptionStatus: status}
}

func TestEvaluate(t *testing.T) {
	plan := &models.Plan{ID: 3, FileCount: 0, EssayWriterCount: 10, EssayGraderCount: 5}

	t.Run("zero means unlimited for plan holders", func(t *testing.T) {
		q := Evaluate(planHolder(3, models.SubscriptionStatusActive), plan, FeatureFiles)
		assert.Equal(t, Quota{Allowed: true, Unlimited: true}, q)
		assert.True(t, q.Allows(1_000_000))
	})

	t.Run("positive quota is a limit", func(t *testing.T) {
		q := Evaluate(planHolder(3, models.SubscriptionStatusActive), plan, FeatureEssayWriter)
		assert.Equal(t, Quota{Allowed: true, Limit: 10}, q)
		assert.True(t, q.Allows(9))
		assert.False(t, q.Allows(10))
	})

	t.Run("no plan means no access", func(t *testing.T) {
		free := &models.User{SubscriptionStatus: models.SubscriptionStatusFree}
		assert.Equal(t, Quota{}, Evaluate(free, nil, FeatureFiles))
		assert.False(t, Evaluate(free, nil, FeatureFiles).Allows(0))
	})

	t.Run("canceled holder loses access", func(t *testing.T) {
		assert.Equal(t, Quota{}, Evaluate(planHolder(3, models.SubscriptionStatusCanceled), plan, FeatureFiles))
	})

	t.Run("banned holder loses access", func(t *testing.T) {
		u := planHolder(3, models.SubscriptionStatusActive)
		u.IsBanned = true
		assert.Equal(t, Quota{}, Evaluate(u, plan, FeatureFiles))
	})

	t.Run("plan must be the one the user holds", func(t *testing.T) {
		assert.Equal(t, Quota{}, Evaluate(planHolder(4, models.SubscriptionStatusActive), plan, FeatureFiles))
	})

	t.Run("unknown feature", func(t *testing.T) {
		assert.Equal(t, Quota{}, Evaluate(planHolder(3, models.SubscriptionStatusActive), plan, Feature("video")))
	})
}

func TestEvaluateAll(t *testing.T) {
	plan := &models.Plan{ID: 1, FileCount: 20, EssayWriterCount: 0, EssayGraderCount: 2}
	all := EvaluateAll(planHolder(1, models.SubscriptionStatusActive), plan)

	assert.Len(t, all, 3)
	assert.Equal(t, 20, all[FeatureFiles].Limit)
	assert.True(t, all[FeatureEssayWriter].Unlimited)
	assert.Equal(t, 2, all[FeatureEssayGrader].Limit)
}
