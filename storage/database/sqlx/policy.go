package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/policy"
)

const policyColumns = `course_id, late_threshold, late_to_absent_threshold, absence_warning_count, absence_danger_count,
	absence_fail_ratio, attendance_weight, late_weight, created_at, updated_at`

type policyRepository struct {
	*Store
}

var _ policy.Repository = (*policyRepository)(nil)

func NewPolicyRepository(st *Store) *policyRepository {
	return &policyRepository{Store: st}
}

func (repo *policyRepository) GetPolicy(ctx context.Context, courseID string) (policy.Policy, error) {
	return repo.get(ctx, repo.ext(ctx), courseID)
}

func (repo *policyRepository) get(ctx context.Context, ext sqlx.ExtContext, courseID string) (policy.Policy, error) {
	var p policy.Policy
	q := `SELECT ` + policyColumns + ` FROM policies WHERE course_id = $1`
	if err := sqlx.GetContext(ctx, ext, &p, q, courseID); err != nil {
		if isNoRows(err) {
			return policy.Policy{}, policy.ErrNotFound
		}
		return policy.Policy{}, errors.Wrap(err, "selecting policy")
	}
	return p, nil
}

// CreatePolicyIfNotExist commits on its own connection, outside any transaction carried by ctx,
// so that the stored defaults do not depend on the caller's transaction outcome.
func (repo *policyRepository) CreatePolicyIfNotExist(ctx context.Context, p policy.Policy) (policy.Policy, error) {
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	q := `INSERT INTO policies (` + policyColumns + `) VALUES (
		:course_id, :late_threshold, :late_to_absent_threshold, :absence_warning_count, :absence_danger_count,
		:absence_fail_ratio, :attendance_weight, :late_weight, :created_at, :updated_at
	) ON CONFLICT (course_id) DO NOTHING`

	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, p); err != nil {
		return policy.Policy{}, errors.Wrap(err, "inserting policy")
	}
	return repo.get(ctx, repo.db, p.CourseID)
}

func (repo *policyRepository) UpdatePolicy(ctx context.Context, p policy.Policy) (policy.Policy, error) {
	p.UpdatedAt = p.UpdatedAt.UTC()
	q := `UPDATE policies SET
		late_threshold = :late_threshold, late_to_absent_threshold = :late_to_absent_threshold,
		absence_warning_count = :absence_warning_count, absence_danger_count = :absence_danger_count,
		absence_fail_ratio = :absence_fail_ratio, attendance_weight = :attendance_weight,
		late_weight = :late_weight, updated_at = :updated_at
	WHERE course_id = :course_id`

	res, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, p)
	if err != nil {
		return policy.Policy{}, errors.Wrap(err, "updating policy")
	}
	if ok, err := affected(res); err != nil {
		return policy.Policy{}, errors.Wrap(err, "updating policy")
	} else if !ok {
		return policy.Policy{}, policy.ErrNotFound
	}
	return p, nil
}
