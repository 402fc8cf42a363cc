package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/mahudhurio/core/session"
)

type sessionRepository struct {
	db *sessionTable
}

var _ session.Repository = (*sessionRepository)(nil)

func NewSessionRepository(db *DB) *sessionRepository {
	return &sessionRepository{db: db.session}
}

func (repo *sessionRepository) CreateSession(_ context.Context, s session.Session) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.table {
		if other.CourseID == s.CourseID && other.Week == s.Week && other.Period == s.Period {
			return session.Session{}, session.ErrDuplicate
		}
	}
	s.ID = newID()
	repo.db.table[s.ID] = &s
	return s, nil
}

func (repo *sessionRepository) GetSession(_ context.Context, id string) (session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.table[id]; ok {
		return *s, nil
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) LockSession(ctx context.Context, id string) (session.Session, error) {
	return repo.GetSession(ctx, id)
}

func (repo *sessionRepository) query(keep func(s *session.Session) bool) []session.Session {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sessions := make([]session.Session, 0)
	for _, s := range repo.db.table {
		if keep(s) {
			sessions = append(sessions, *s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].Week != sessions[j].Week {
			return sessions[i].Week < sessions[j].Week
		}
		return sessions[i].Period < sessions[j].Period
	})
	return sessions
}

func (repo *sessionRepository) QueryWeek(_ context.Context, courseID string, week int) ([]session.Session, error) {
	return repo.query(func(s *session.Session) bool { return s.CourseID == courseID && s.Week == week }), nil
}

func (repo *sessionRepository) QueryCourseSessions(_ context.Context, courseID string) ([]session.Session, error) {
	return repo.query(func(s *session.Session) bool { return s.CourseID == courseID }), nil
}

func (repo *sessionRepository) UpdateSession(_ context.Context, s session.Session) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[s.ID]; !ok {
		return session.Session{}, session.ErrNotFound
	}
	repo.db.table[s.ID] = &s
	return s, nil
}
