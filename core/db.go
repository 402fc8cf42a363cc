package core

import "context"

// Transactor runs fn inside a single consistency boundary.
// Repositories called with the ctx handed to fn take part in the same transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
