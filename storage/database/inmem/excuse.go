package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/mahudhurio/core/excuse"
)

type excuseRepository struct {
	db *excuseTable
}

var _ excuse.Repository = (*excuseRepository)(nil)

func NewExcuseRepository(db *DB) *excuseRepository {
	return &excuseRepository{db: db.excuse}
}

// clone detaches e from the stored slices.
func clone(e excuse.Excuse) excuse.Excuse {
	if e.Files != nil {
		e.Files = append([]string(nil), e.Files...)
	}
	e.Requests = append([]excuse.Request(nil), e.Requests...)
	sort.Slice(e.Requests, func(i, j int) bool { return e.Requests[i].Period < e.Requests[j].Period })
	return e
}

func (repo *excuseRepository) CreateExcuse(_ context.Context, e excuse.Excuse) (excuse.Excuse, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.table {
		if other.CourseID == e.CourseID && other.Week == e.Week && other.StudentID == e.StudentID {
			return excuse.Excuse{}, excuse.ErrDuplicate
		}
	}

	e = clone(e)
	e.ID = newID()
	for i := range e.Requests {
		e.Requests[i].ID = newID()
		e.Requests[i].ExcuseID = e.ID
		repo.db.requests[e.Requests[i].ID] = e.ID
	}
	repo.db.table[e.ID] = &e
	return clone(e), nil
}

func (repo *excuseRepository) GetExcuseByRequest(_ context.Context, id string) (excuse.Excuse, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if excuseID, ok := repo.db.requests[id]; ok {
		id = excuseID
	}
	if e, ok := repo.db.table[id]; ok {
		return clone(*e), nil
	}
	return excuse.Excuse{}, excuse.ErrNotFound
}

func (repo *excuseRepository) QueryStudentExcuses(_ context.Context, courseID, studentID string) ([]excuse.Excuse, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excuses := make([]excuse.Excuse, 0)
	for _, e := range repo.db.table {
		if e.CourseID == courseID && e.StudentID == studentID {
			excuses = append(excuses, clone(*e))
		}
	}
	sort.Slice(excuses, func(i, j int) bool { return excuses[i].Week < excuses[j].Week })
	return excuses, nil
}

func (repo *excuseRepository) UpdateExcuse(_ context.Context, e excuse.Excuse) (excuse.Excuse, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[e.ID]
	if !ok {
		return excuse.Excuse{}, excuse.ErrNotFound
	}
	if !orig.IsPending() {
		return excuse.Excuse{}, excuse.ErrAlreadyDecided
	}

	// only decision fields and new requests are saved
	updated := clone(*orig)
	updated.Status = e.Status
	updated.Comment = e.Comment
	updated.ReviewedAt = e.ReviewedAt
	for _, r := range e.Requests {
		if r.ID != "" {
			continue
		}
		r.ID = newID()
		r.ExcuseID = e.ID
		repo.db.requests[r.ID] = e.ID
		updated.Requests = append(updated.Requests, r)
	}
	repo.db.table[e.ID] = &updated
	return clone(updated), nil
}
