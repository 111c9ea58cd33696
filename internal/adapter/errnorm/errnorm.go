// Package errnorm turns the failure values reported by engine callbacks into
// [*domain.Error].
package errnorm

import (
	"errors"
	"fmt"

	"github.com/vinicius-lino-figueiredo/bst"
	"github.com/vinicius-lino-figueiredo/gedbpromise/domain"
)

// UniqueViolated is the errorType of structured unique constraint failures.
const UniqueViolated = "uniqueViolated"

// Normalize returns the uniform representation of engineError. It accepts
// strings, errors, structured failures carrying "message", "errorType" and
// "key" fields and any other value, which is formatted with %v. Unique
// constraint violations are tagged with [domain.ConditionDuplicateKey].
// Normalizing an [*domain.Error] returns it unchanged. An error wrapping one
// keeps its own message and takes the condition of the wrapped value.
func Normalize(engineError any) *domain.Error {
	switch t := engineError.(type) {
	case nil:
		return domain.NewError("", domain.ConditionNone, nil)
	case *domain.Error:
		return t
	case error:
		var normalized *domain.Error
		if errors.As(t, &normalized) {
			return domain.NewError(t.Error(), normalized.Condition(), t)
		}
		return domain.NewError(t.Error(), condition(isUniqueViolation(t)), t)
	case string:
		return domain.NewError(t, domain.ConditionNone, nil)
	case domain.Document:
		return fromFields(t.Get)
	case map[string]any:
		return fromFields(func(k string) any { return t[k] })
	default:
		return domain.NewError(fmt.Sprintf("%v", t), domain.ConditionNone, nil)
	}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, domain.ErrConstraintViolated) ||
		errors.As(err, new(bst.ErrUniqueViolated))
}

func fromFields(get func(string) any) *domain.Error {
	msg, _ := get("message").(string)
	errorType, _ := get("errorType").(string)
	if msg == "" && errorType == UniqueViolated {
		msg = fmt.Sprintf("can't insert key %v, it violates the unique constraint", get("key"))
	}
	return domain.NewError(msg, condition(errorType == UniqueViolated), nil)
}

func condition(duplicateKey bool) domain.Condition {
	if duplicateKey {
		return domain.ConditionDuplicateKey
	}
	return domain.ConditionNone
}
