package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/mahudhurio/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTable
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db.attendance}
}

func (repo *attendanceRepository) CreateAttendance(_ context.Context, a attendance.Attendance) (attendance.Attendance, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.table {
		if other.SessionID == a.SessionID && other.StudentID == a.StudentID {
			return attendance.Attendance{}, attendance.ErrDuplicate
		}
	}
	a.ID = newID()
	repo.db.table[a.ID] = &a
	return a, nil
}

func (repo *attendanceRepository) GetAttendance(_ context.Context, id string) (attendance.Attendance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.table[id]; ok {
		return *a, nil
	}
	return attendance.Attendance{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) GetSessionAttendance(_ context.Context, sessionID, studentID string) (attendance.Attendance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, a := range repo.db.table {
		if a.SessionID == sessionID && a.StudentID == studentID {
			return *a, nil
		}
	}
	return attendance.Attendance{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) query(keep func(a *attendance.Attendance) bool) []attendance.Attendance {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]attendance.Attendance, 0)
	for _, a := range repo.db.table {
		if keep(a) {
			records = append(records, *a)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].StudentID < records[j].StudentID
	})
	return records
}

func (repo *attendanceRepository) QuerySessionAttendances(_ context.Context, sessionID string) ([]attendance.Attendance, error) {
	return repo.query(func(a *attendance.Attendance) bool { return a.SessionID == sessionID }), nil
}

func (repo *attendanceRepository) QueryStudentAttendances(_ context.Context, courseID, studentID string) ([]attendance.Attendance, error) {
	return repo.query(func(a *attendance.Attendance) bool {
		return a.CourseID == courseID && a.StudentID == studentID
	}), nil
}

func (repo *attendanceRepository) UpdateAttendance(_ context.Context, a attendance.Attendance) (attendance.Attendance, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[a.ID]; !ok {
		return attendance.Attendance{}, attendance.ErrNotFound
	}
	repo.db.table[a.ID] = &a
	return a, nil
}

func (repo *attendanceRepository) CountAbsences(_ context.Context, courseID, studentID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var n int
	for _, a := range repo.db.table {
		if a.CourseID == courseID && a.StudentID == studentID && a.Status == attendance.StatusAbsent {
			n++
		}
	}
	return n, nil
}
