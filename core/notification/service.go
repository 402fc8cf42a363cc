package notification

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/course"
	"github.com/trezcool/mahudhurio/core/excuse"
	"github.com/trezcool/mahudhurio/core/policy"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("notification not found")
)

type (
	Repository interface {
		// CreateNotificationIfNotExist inserts n unless a notification with its dedupe key exists.
		// created reports whether n was inserted.
		CreateNotificationIfNotExist(ctx context.Context, n Notification) (saved Notification, created bool, err error)
		GetNotification(ctx context.Context, id string) (Notification, error)
		QueryUserNotifications(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error)
		UpdateNotification(ctx context.Context, n Notification) (Notification, error)
	}

	AbsenceCounter interface {
		CountAbsences(ctx context.Context, courseID, studentID string) (int, error)
	}

	PolicyProvider interface {
		GetOrCreateDefault(ctx context.Context, courseID string) (policy.Policy, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) List(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error) {
	return svc.repo.QueryUserNotifications(ctx, userID, unreadOnly)
}

// MarkRead marks one of userID's notifications as read. Notifications of other users are not found.
func (svc *Service) MarkRead(ctx context.Context, userID, id string) (Notification, error) {
	n, err := svc.repo.GetNotification(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.UserID != userID {
		return Notification{}, ErrNotFound
	}
	if n.IsRead {
		return n, nil
	}
	now := core.NowFunc()
	n.IsRead = true
	n.ReadAt = &now
	return svc.repo.UpdateNotification(ctx, n)
}

// Notifier turns committed domain events into notifications.
// Failures are logged, never returned: notifications must not undo the mutation that caused them.
type Notifier struct {
	repo     Repository
	counter  AbsenceCounter
	policies PolicyProvider
	dir      course.Directory
	mailer   core.EmailService
	logger   core.Logger
}

var _ core.EventHandler = (*Notifier)(nil)

func NewNotifier(
	repo Repository,
	counter AbsenceCounter,
	policies PolicyProvider,
	dir course.Directory,
	mailer core.EmailService,
	logger core.Logger,
) *Notifier {
	return &Notifier{
		repo:     repo,
		counter:  counter,
		policies: policies,
		dir:      dir,
		mailer:   mailer,
		logger:   logger,
	}
}

func (nt *Notifier) Handle(ctx context.Context, events core.Events) {
	var created []Notification
	checked := make(map[string]bool)

	for _, ev := range events {
		var (
			ns  []Notification
			err error
		)
		switch ev.Kind {
		case core.EventSessionOpened, core.EventSessionClosed:
			ns, err = nt.sessionNotifications(ctx, ev)
		case core.EventAbsenceAdded:
			key := ev.CourseID + ":" + ev.StudentID
			if checked[key] {
				continue
			}
			checked[key] = true
			ns, err = nt.CheckAbsences(ctx, ev.CourseID, ev.StudentID)
		case core.EventExcuseDecided:
			ns, err = nt.excuseNotifications(ctx, ev)
		default:
			continue
		}
		if err != nil {
			nt.logger.Error(fmt.Sprintf("notifying %s: %v", ev.Kind, err), err, map[string]interface{}{"event": ev})
		}
		created = append(created, ns...)
	}

	nt.send(ctx, created)
}

// CheckAbsences recounts the student's absences in the course and notifies
// when the count is exactly the warning or the danger threshold.
func (nt *Notifier) CheckAbsences(ctx context.Context, courseID, studentID string) ([]Notification, error) {
	count, err := nt.counter.CountAbsences(ctx, courseID, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "counting absences")
	}
	p, err := nt.policies.GetOrCreateDefault(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "getting policy")
	}

	var ns []Notification
	for _, kind := range Crossings(count, p) {
		title := "Absence warning"
		body := fmt.Sprintf("You have %d absences in this course. At %d absences you are at risk of failing.", count, p.AbsenceDangerCount)
		if kind == KindAbsenceDanger {
			title = "Absence danger"
			body = fmt.Sprintf("You have %d absences in this course and are at risk of failing it.", count)
		}
		n, ok, err := nt.create(ctx, Notification{
			UserID:    studentID,
			Kind:      kind,
			CourseID:  courseID,
			Title:     title,
			Body:      body,
			DedupeKey: AbsenceKey(kind, courseID, studentID, count),
		})
		if err != nil {
			return ns, err
		}
		if ok {
			ns = append(ns, n)
		}
	}
	return ns, nil
}

func (nt *Notifier) sessionNotifications(ctx context.Context, ev core.Event) ([]Notification, error) {
	kind, title, body := KindAttendanceOpened, "Attendance opened", "Attendance is open for week %d. Check in before the window closes."
	if ev.Kind == core.EventSessionClosed {
		kind, title, body = KindAttendanceClosed, "Attendance closed", "Attendance for week %d is closed."
	}

	students, err := nt.dir.EnrolledStudents(ctx, ev.CourseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrolled students")
	}
	var ns []Notification
	for _, studentID := range students {
		n, ok, err := nt.create(ctx, Notification{
			UserID:    studentID,
			Kind:      kind,
			CourseID:  ev.CourseID,
			SessionID: ev.SessionID,
			Title:     title,
			Body:      fmt.Sprintf(body, ev.Week),
			DedupeKey: sessionKey(kind, ev.SessionID, studentID),
		})
		if err != nil {
			return ns, err
		}
		if ok {
			ns = append(ns, n)
		}
	}
	return ns, nil
}

func (nt *Notifier) excuseNotifications(ctx context.Context, ev core.Event) ([]Notification, error) {
	kind, title := KindExcuseRejected, "Excuse rejected"
	if ev.Detail == excuse.StatusApproved {
		kind, title = KindExcuseApproved, "Excuse approved"
	}
	n, ok, err := nt.create(ctx, Notification{
		UserID:    ev.StudentID,
		Kind:      kind,
		CourseID:  ev.CourseID,
		ExcuseID:  ev.ExcuseID,
		Title:     title,
		Body:      fmt.Sprintf("Your excuse for week %d was %s.", ev.Week, ev.Detail),
		DedupeKey: excuseKey(kind, ev.ExcuseID),
	})
	if err != nil || !ok {
		return nil, err
	}
	return []Notification{n}, nil
}

func (nt *Notifier) create(ctx context.Context, n Notification) (Notification, bool, error) {
	n.CreatedAt = core.NowFunc()
	saved, ok, err := nt.repo.CreateNotificationIfNotExist(ctx, n)
	if err != nil {
		return Notification{}, false, errors.Wrapf(err, "creating %s notification", n.Kind)
	}
	return saved, ok, nil
}

// send emails the created notifications to the recipients that have an address.
func (nt *Notifier) send(ctx context.Context, ns []Notification) {
	if nt.mailer == nil || len(ns) == 0 {
		return
	}
	msgs := make([]*core.EmailMessage, 0, len(ns))
	for _, n := range ns {
		p, err := nt.dir.GetPerson(ctx, n.UserID)
		if err != nil {
			nt.logger.Warn(fmt.Sprintf("getting notification recipient %s: %v", n.UserID, err))
			continue
		}
		if p.Email == "" {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: p.Name, Address: p.Email}},
			Subject:      n.Title,
			TemplateName: "notification",
			TemplateData: map[string]string{"Name": p.Name, "Title": n.Title, "Body": n.Body},
		})
	}
	nt.mailer.SendMessages(msgs...)
}
