package repository

import (
	"context"

	"github.com/spec-kit/telegram-auth-service/internal/domain"
)

// PlanRepository reads subscription plans used for trial provisioning.
type PlanRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Plan, error)
}

type planRepository struct {
	db DBTX
}

// NewPlanRepository constructs repository.
func NewPlanRepository(db DBTX) PlanRepository {
	return &planRepository{db: db}
}

func (r *planRepository) GetByID(ctx context.Context, id int64) (*domain.Plan, error) {
	const query = `
        SELECT id, group_id, transfer_enable, speed_limit
        FROM plans WHERE id=$1`

	var plan domain.Plan
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&plan.ID,
		&plan.GroupID,
		&plan.TransferEnable,
		&plan.SpeedLimit,
	); err != nil {
		return nil, mapNoRows(err)
	}
	return &plan, nil
}
