package apperrors

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrConnectivity   = errors.New("connectivity error")
	ErrAuth           = errors.New("authentication error")
	ErrQuery          = errors.New("query error")
	ErrReference      = errors.New("reference error")
	ErrValidation     = errors.New("validation error")
	ErrPersistence    = errors.New("persistence error")
	ErrStaleBaseline  = errors.New("baseline is stale")
	ErrSecretMismatch = errors.New("secret was encrypted with a different key")
)

// PersistenceMessage is shown to the operator when a write was issued but its outcome is unknown.
const PersistenceMessage = "mutation outcome unknown, reload to verify"

// Kind returns the taxonomy sentinel err belongs to, or nil if it is unclassified.
// Persistence wins over the cause it wraps so callers report the uncertain outcome.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{
		ErrPersistence,
		ErrValidation,
		ErrReference,
		ErrStaleBaseline,
		ErrNotFound,
		ErrAuth,
		ErrConnectivity,
		ErrQuery,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// UserMessage returns the operator-facing text for err.
func UserMessage(err error) string {
	switch Kind(err) {
	case nil:
		if err == nil {
			return ""
		}
		return "unexpected error"
	case ErrPersistence:
		return PersistenceMessage
	default:
		return err.Error()
	}
}
