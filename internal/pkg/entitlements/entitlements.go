package entitlements

import (
	"github.com/ManuelReschke/DocuChat/app/models"
)

type Feature string

const (
	FeatureFiles       Feature = "files"
	FeatureEssayWriter Feature = "essay_writer"
	FeatureEssayGrader Feature = "essay_grader"
)

// Quota is the usage allowance of one feature.
type Quota struct {
	Allowed   bool `json:"allowed"`
	Unlimited bool `json:"unlimited"`
	Limit     int  `json:"limit"`
}

// Allows reports whether one more use fits after used uses.
func (q Quota) Allows(used int) bool {
	if !q.Allowed {
		return false
	}
	return q.Unlimited || used < q.Limit
}

func quotaValue(plan *models.Plan, feature Feature) (int, bool) {
	switch feature {
	case FeatureFiles:
		return plan.FileCount, true
	case FeatureEssayWriter:
		return plan.EssayWriterCount, true
	case FeatureEssayGrader:
		return plan.EssayGraderCount, true
	default:
		return 0, false
	}
}

// Evaluate resolves the quota of feature for user. A zero quota means
// unlimited for users holding an active plan; without one there is no
// access. Banned users never get access.
func Evaluate(user *models.User, plan *models.Plan, feature Feature) Quota {
	if user == nil || plan == nil || !user.HasActivePlan() {
		return Quota{}
	}
	if user.PlanID == nil || *user.PlanID != plan.ID {
		return Quota{}
	}

	v, ok := quotaValue(plan, feature)
	if !ok || v < 0 {
		return Quota{}
	}
	if v == 0 {
		return Quota{Allowed: true, Unlimited: true}
	}
	return Quota{Allowed: true, Limit: v}
}

// EvaluateAll resolves every known feature.
func EvaluateAll(user *models.User, plan *models.Plan) map[Feature]Quota {
	out := make(map[Feature]Quota, 3)
	for _, f := range []Feature{FeatureFiles, FeatureEssayWriter, FeatureEssayGrader} {
		out[f] = Evaluate(user, plan, f)
	}
	return out
}
