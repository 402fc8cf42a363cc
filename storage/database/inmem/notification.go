package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/mahudhurio/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db.notification}
}

func (repo *notificationRepository) CreateNotificationIfNotExist(_ context.Context, n notification.Notification) (notification.Notification, bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if id, ok := repo.db.dedupe[n.DedupeKey]; ok && n.DedupeKey != "" {
		return *repo.db.table[id], false, nil
	}
	n.ID = newID()
	repo.db.table[n.ID] = &n
	if n.DedupeKey != "" {
		repo.db.dedupe[n.DedupeKey] = n.ID
	}
	return n, true, nil
}

func (repo *notificationRepository) GetNotification(_ context.Context, id string) (notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if n, ok := repo.db.table[id]; ok {
		return *n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) QueryUserNotifications(_ context.Context, userID string, unreadOnly bool) ([]notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ns := make([]notification.Notification, 0)
	for _, n := range repo.db.table {
		if n.UserID == userID && !(unreadOnly && n.IsRead) {
			ns = append(ns, *n)
		}
	}
	// newest first
	sort.Slice(ns, func(i, j int) bool {
		if !ns[i].CreatedAt.Equal(ns[j].CreatedAt) {
			return ns[i].CreatedAt.After(ns[j].CreatedAt)
		}
		return ns[i].ID < ns[j].ID
	})
	return ns, nil
}

func (repo *notificationRepository) UpdateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[n.ID]; !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	repo.db.table[n.ID] = &n
	return n, nil
}
