package policy

import "time"

// Defaults materialized on first read of a course's policy.
const (
	DefaultLateThreshold         = 10 // minutes
	DefaultLateToAbsentThreshold = 30 // minutes
	DefaultAbsenceWarningCount   = 2
	DefaultAbsenceDangerCount    = 3
	DefaultAbsenceFailRatio      = 0.25
	DefaultAttendanceWeight      = 1.0
	DefaultLateWeight            = 0.5
)

// Policy holds the per-course thresholds governing adjudication.
type Policy struct {
	CourseID              string    `json:"course_id" db:"course_id" yaml:"course_id"`
	LateThreshold         int       `json:"late_threshold" db:"late_threshold" yaml:"late_threshold"`
	LateToAbsentThreshold int       `json:"late_to_absent_threshold" db:"late_to_absent_threshold" yaml:"late_to_absent_threshold"`
	AbsenceWarningCount   int       `json:"absence_warning_count" db:"absence_warning_count" yaml:"absence_warning_count"`
	AbsenceDangerCount    int       `json:"absence_danger_count" db:"absence_danger_count" yaml:"absence_danger_count"`
	AbsenceFailRatio      float64   `json:"absence_fail_ratio" db:"absence_fail_ratio" yaml:"absence_fail_ratio"`
	AttendanceWeight      float64   `json:"attendance_weight" db:"attendance_weight" yaml:"attendance_weight"`
	LateWeight            float64   `json:"late_weight" db:"late_weight" yaml:"late_weight"`
	CreatedAt             time.Time `json:"created_at" db:"created_at" yaml:"-"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at" yaml:"-"`
}

// Default returns the documented default policy for a course.
func Default(courseID string) Policy {
	return Policy{
		CourseID:              courseID,
		LateThreshold:         DefaultLateThreshold,
		LateToAbsentThreshold: DefaultLateToAbsentThreshold,
		AbsenceWarningCount:   DefaultAbsenceWarningCount,
		AbsenceDangerCount:    DefaultAbsenceDangerCount,
		AbsenceFailRatio:      DefaultAbsenceFailRatio,
		AttendanceWeight:      DefaultAttendanceWeight,
		LateWeight:            DefaultLateWeight,
	}
}

// UpdatePolicy defines what may be provided to modify a Policy. Nil fields keep their prior values.
type UpdatePolicy struct {
	LateThreshold         *int     `json:"late_threshold" yaml:"late_threshold"`
	LateToAbsentThreshold *int     `json:"late_to_absent_threshold" yaml:"late_to_absent_threshold"`
	AbsenceWarningCount   *int     `json:"absence_warning_count" yaml:"absence_warning_count"`
	AbsenceDangerCount    *int     `json:"absence_danger_count" yaml:"absence_danger_count"`
	AbsenceFailRatio      *float64 `json:"absence_fail_ratio" yaml:"absence_fail_ratio"`
	AttendanceWeight      *float64 `json:"attendance_weight" yaml:"attendance_weight"`
	LateWeight            *float64 `json:"late_weight" yaml:"late_weight"`
}

// IsEmpty reports whether no field is set.
func (up UpdatePolicy) IsEmpty() bool {
	return up.LateThreshold == nil && up.LateToAbsentThreshold == nil &&
		up.AbsenceWarningCount == nil && up.AbsenceDangerCount == nil &&
		up.AbsenceFailRatio == nil && up.AttendanceWeight == nil && up.LateWeight == nil
}

// Merge applies the set fields of up onto p.
func (up UpdatePolicy) Merge(p Policy) Policy {
	if up.LateThreshold != nil {
		p.LateThreshold = *up.LateThreshold
	}
	if up.LateToAbsentThreshold != nil {
		p.LateToAbsentThreshold = *up.LateToAbsentThreshold
	}
	if up.AbsenceWarningCount != nil {
		p.AbsenceWarningCount = *up.AbsenceWarningCount
	}
	if up.AbsenceDangerCount != nil {
		p.AbsenceDangerCount = *up.AbsenceDangerCount
	}
	if up.AbsenceFailRatio != nil {
		p.AbsenceFailRatio = *up.AbsenceFailRatio
	}
	if up.AttendanceWeight != nil {
		p.AttendanceWeight = *up.AttendanceWeight
	}
	if up.LateWeight != nil {
		p.LateWeight = *up.LateWeight
	}
	return p
}
