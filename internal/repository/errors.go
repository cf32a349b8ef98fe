// Package repository holds the MySQL data access code.  Repositories return
// sql.ErrNoRows or the sentinels below; services translate them into typed
// application errors.
package repository

import (
	"errors"
	"strings"
)

// ErrConflict is returned when a unique constraint rejects an insert or
// update (for example a duplicate role name or access control path).
var ErrConflict = errors.New("conflict")

// ErrNoChange signals that an UPDATE or DELETE matched no rows.
var ErrNoChange = errors.New("no rows affected")

// isDuplicate reports whether err is MySQL error 1062 (duplicate entry).
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}
