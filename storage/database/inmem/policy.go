package inmemdb

import (
	"context"

	"github.com/trezcool/mahudhurio/core/policy"
)

type policyRepository struct {
	db *policyTable
}

var _ policy.Repository = (*policyRepository)(nil)

func NewPolicyRepository(db *DB) *policyRepository {
	return &policyRepository{db: db.policy}
}

func (repo *policyRepository) GetPolicy(_ context.Context, courseID string) (policy.Policy, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.table[courseID]; ok {
		return *p, nil
	}
	return policy.Policy{}, policy.ErrNotFound
}

func (repo *policyRepository) CreatePolicyIfNotExist(_ context.Context, p policy.Policy) (policy.Policy, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if existing, ok := repo.db.table[p.CourseID]; ok {
		return *existing, nil
	}
	repo.db.table[p.CourseID] = &p
	return p, nil
}

func (repo *policyRepository) UpdatePolicy(_ context.Context, p policy.Policy) (policy.Policy, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[p.CourseID]; !ok {
		return policy.Policy{}, policy.ErrNotFound
	}
	repo.db.table[p.CourseID] = &p
	return p, nil
}
