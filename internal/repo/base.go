// Package repo carries the shared plumbing the domain repositories embed.
package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base holds the GORM handle for a repository. Repositories embed it and
// swap the handle via their WithTx constructors when a caller needs every
// statement on one transaction.
type Base struct {
	conn *gorm.DB
}

// NewBase wraps a connection or an open transaction.
func NewBase(conn *gorm.DB) Base {
	return Base{conn: conn}
}

// DB binds the handle to the request context so cancellation propagates
// into the driver.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.conn
	}
	return b.conn.WithContext(ctx)
}
