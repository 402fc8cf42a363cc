package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core/notification"
)

type notificationRow struct {
	ID        string      `db:"id"`
	UserID    string      `db:"user_id"`
	Kind      string      `db:"kind"`
	CourseID  null.String `db:"course_id"`
	SessionID null.String `db:"session_id"`
	ExcuseID  null.String `db:"excuse_id"`
	Title     string      `db:"title"`
	Body      string      `db:"body"`
	DedupeKey string      `db:"dedupe_key"`
	IsRead    bool        `db:"is_read"`
	CreatedAt time.Time   `db:"created_at"`
	ReadAt    null.Time   `db:"read_at"`
}

func toNotificationRow(n notification.Notification) notificationRow {
	row := notificationRow{
		ID:        n.ID,
		UserID:    n.UserID,
		Kind:      n.Kind,
		CourseID:  null.NewString(n.CourseID, n.CourseID != ""),
		SessionID: null.NewString(n.SessionID, n.SessionID != ""),
		ExcuseID:  null.NewString(n.ExcuseID, n.ExcuseID != ""),
		Title:     n.Title,
		Body:      n.Body,
		DedupeKey: n.DedupeKey,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.UTC(),
	}
	if row.DedupeKey == "" {
		row.DedupeKey = n.ID // never collides
	}
	if n.ReadAt != nil {
		row.ReadAt = null.TimeFrom(n.ReadAt.UTC())
	}
	return row
}

func (row notificationRow) toNotification() notification.Notification {
	return notification.Notification{
		ID:        row.ID,
		UserID:    row.UserID,
		Kind:      row.Kind,
		CourseID:  row.CourseID.String,
		SessionID: row.SessionID.String,
		ExcuseID:  row.ExcuseID.String,
		Title:     row.Title,
		Body:      row.Body,
		DedupeKey: row.DedupeKey,
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt,
		ReadAt:    row.ReadAt.Ptr(),
	}
}

const notificationColumns = `id, user_id, kind, course_id, session_id, excuse_id, title, body, dedupe_key, is_read, created_at, read_at`

type notificationRepository struct {
	*Store
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(st *Store) *notificationRepository {
	return &notificationRepository{Store: st}
}

func (repo *notificationRepository) CreateNotificationIfNotExist(ctx context.Context, n notification.Notification) (notification.Notification, bool, error) {
	n.ID = newID()
	row := toNotificationRow(n)
	q := `INSERT INTO notifications (` + notificationColumns + `) VALUES (
		:id, :user_id, :kind, :course_id, :session_id, :excuse_id, :title, :body, :dedupe_key, :is_read, :created_at, :read_at
	) ON CONFLICT (dedupe_key) DO NOTHING`

	res, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, row)
	if err != nil {
		return notification.Notification{}, false, errors.Wrap(err, "inserting notification")
	}
	ok, err := affected(res)
	if err != nil {
		return notification.Notification{}, false, errors.Wrap(err, "inserting notification")
	}
	if ok {
		return row.toNotification(), true, nil
	}

	existing, err := repo.get(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE dedupe_key = $1`, row.DedupeKey)
	return existing, false, err
}

func (repo *notificationRepository) get(ctx context.Context, q string, args ...interface{}) (notification.Notification, error) {
	var row notificationRow
	if err := sqlx.GetContext(ctx, repo.ext(ctx), &row, q, args...); err != nil {
		if isNoRows(err) {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "selecting notification")
	}
	return row.toNotification(), nil
}

func (repo *notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	return repo.get(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
}

func (repo *notificationRepository) QueryUserNotifications(ctx context.Context, userID string, unreadOnly bool) ([]notification.Notification, error) {
	var rows []notificationRow
	q := `SELECT ` + notificationColumns + ` FROM notifications
	WHERE user_id = $1 AND (NOT $2 OR NOT is_read)
	ORDER BY created_at DESC, id`
	if err := sqlx.SelectContext(ctx, repo.ext(ctx), &rows, q, userID, unreadOnly); err != nil {
		return nil, errors.Wrap(err, "selecting notifications")
	}

	ns := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		ns = append(ns, row.toNotification())
	}
	return ns, nil
}

func (repo *notificationRepository) UpdateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	q := `UPDATE notifications SET is_read = :is_read, read_at = :read_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, toNotificationRow(n))
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "updating notification")
	}
	if ok, err := affected(res); err != nil {
		return notification.Notification{}, errors.Wrap(err, "updating notification")
	} else if !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	return n, nil
}
