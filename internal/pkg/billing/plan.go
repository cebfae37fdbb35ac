package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/DocuChat/app/models"
)

// PlanLookup resolves plans by internal id or external price id. The bool is
// false when no such plan exists.
type PlanLookup interface {
	PlanByID(ctx context.Context, id uint) (*models.Plan, bool, error)
	PlanByPriceID(ctx context.Context, priceID string) (*models.Plan, bool, error)
}

// PlanCache is a read-through cache in front of the plan table. Misses and
// backend failures both report ok=false.
type PlanCache interface {
	Get(ctx context.Context, key string) (*models.Plan, bool)
	Set(ctx context.Context, key string, plan *models.Plan)
	Delete(ctx context.Context, keys ...string)
}

func PlanIDCacheKey(id uint) string {
	return fmt.Sprintf("billing:plan:id:%d", id)
}

func PlanPriceCacheKey(priceID string) string {
	return "billing:plan:price:" + priceID
}

// PlanRegistry is the read model of purchasable plans.
type PlanRegistry struct {
	db    *gorm.DB
	cache PlanCache
}

// NewPlanRegistry creates a registry. cache may be nil.
func NewPlanRegistry(db *gorm.DB, cache PlanCache) *PlanRegistry {
	return &PlanRegistry{db: db, cache: cache}
}

func (r *PlanRegistry) PlanByID(ctx context.Context, id uint) (*models.Plan, bool, error) {
	if id == 0 {
		return nil, false, nil
	}
	return r.lookup(ctx, PlanIDCacheKey(id), r.db.Where("id = ?", id))
}

func (r *PlanRegistry) PlanByPriceID(ctx context.Context, priceID string) (*models.Plan, bool, error) {
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return nil, false, nil
	}
	return r.lookup(ctx, PlanPriceCacheKey(priceID), r.db.Where("stripe_price_id = ?", priceID))
}

func (r *PlanRegistry) lookup(ctx context.Context, key string, query *gorm.DB) (*models.Plan, bool, error) {
	if r.cache != nil {
		if plan, ok := r.cache.Get(ctx, key); ok {
			return plan, true, nil
		}
	}

	var plan models.Plan
	if err := query.WithContext(ctx).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	if r.cache != nil {
		r.cache.Set(ctx, key, &plan)
	}
	return &plan, true, nil
}

// List returns all plans ordered by price.
func (r *PlanRegistry) List(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	err := r.db.WithContext(ctx).Order("price ASC, id ASC").Find(&plans).Error
	return plans, err
}

// Create inserts a new plan. The price id may be provisioned now or later.
func (r *PlanRegistry) Create(ctx context.Context, plan *models.Plan) error {
	plan.Name = strings.TrimSpace(plan.Name)
	if plan.Name == "" {
		return errors.New("plan name is required")
	}
	if plan.Price.IsNegative() {
		return errors.New("plan price must not be negative")
	}
	if plan.Interval == "" {
		plan.Interval = models.PlanIntervalMonthly
	}
	if !plan.Interval.Valid() {
		return ErrInvalidPlanInterval
	}
	if plan.StripePriceID != nil && strings.TrimSpace(*plan.StripePriceID) == "" {
		plan.StripePriceID = nil
	}
	return r.db.WithContext(ctx).Create(plan).Error
}

// ProvisionPriceID attaches the external price id to a plan exactly once.
// Re-provisioning with the same value is a no-op.
func (r *PlanRegistry) ProvisionPriceID(ctx context.Context, planID uint, priceID string) error {
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return errors.New("price id is required")
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plan models.Plan
		if err := tx.First(&plan, planID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPlanNotFound
			}
			return err
		}
		if plan.StripePriceID != nil {
			if *plan.StripePriceID == priceID {
				return nil
			}
			return ErrPriceIDImmutable
		}

		res := tx.Model(&models.Plan{}).
			Where("id = ? AND stripe_price_id IS NULL", planID).
			Update("stripe_price_id", priceID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPriceIDImmutable
		}
		return nil
	})
	if err != nil {
		return err
	}

	if r.cache != nil {
		r.cache.Delete(ctx, PlanIDCacheKey(planID))
	}
	log.Infof("[PlanRegistry] provisioned price %s for plan %d", priceID, planID)
	return nil
}
