package policy

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/trezcool/mahudhurio/core"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("attendance policy not found")
)

type (
	Repository interface {
		GetPolicy(ctx context.Context, courseID string) (Policy, error)
		// CreatePolicyIfNotExist inserts p unless the course already has a policy,
		// then returns whichever policy is stored. The insert must not belong to a
		// transaction carried by ctx: its result is shared with concurrent callers.
		CreatePolicyIfNotExist(ctx context.Context, p Policy) (Policy, error)
		UpdatePolicy(ctx context.Context, p Policy) (Policy, error)
	}

	Service struct {
		repo  Repository
		group singleflight.Group
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetOrCreateDefault returns the course's policy, materializing the defaults on first access.
func (svc *Service) GetOrCreateDefault(ctx context.Context, courseID string) (Policy, error) {
	p, err := svc.repo.GetPolicy(ctx, courseID)
	if err == nil {
		return p, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Policy{}, errors.Wrap(err, "getting policy")
	}

	// concurrent first reads of the same course share one insert, committed independently of the caller
	v, err, _ := svc.group.Do(courseID, func() (interface{}, error) {
		now := core.NowFunc()
		def := Default(courseID)
		def.CreatedAt = now
		def.UpdatedAt = now
		return svc.repo.CreatePolicyIfNotExist(ctx, def)
	})
	if err != nil {
		return Policy{}, errors.Wrap(err, "creating default policy")
	}
	return v.(Policy), nil
}

// Update merges the set fields of up into the course's policy (creating it with defaults first if needed).
func (svc *Service) Update(ctx context.Context, courseID string, up UpdatePolicy) (Policy, error) {
	p, err := svc.GetOrCreateDefault(ctx, courseID)
	if err != nil {
		return Policy{}, err
	}
	if up.IsEmpty() {
		return p, nil
	}
	p = up.Merge(p)
	p.UpdatedAt = core.NowFunc()
	p, err = svc.repo.UpdatePolicy(ctx, p)
	if err != nil {
		return Policy{}, errors.Wrap(err, "updating policy")
	}
	return p, nil
}
