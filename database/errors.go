package database

import (
	stderrors "errors"
	"strings"

	"gorm.io/gorm"

	"github.com/kbukum/entitypipe/errors"
)

// IsConnectionError reports whether err looks like a lost or refused
// connection that a retry might fix. It is meant as a RetryIf predicate
// for source.WithRetry.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"driver: bad connection",
		"database is locked",
		"sql: database is closed",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// translate maps gorm errors onto application errors. Errors it does not
// know are returned as is; the consumer wraps them as sink failures.
func translate(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.IsAppError(err):
		return err
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return errors.NotFound(resource, "")
	case stderrors.Is(err, gorm.ErrDuplicatedKey):
		return errors.InvalidInput("key", resource+" already exists").WithCause(err)
	}
	return err
}
