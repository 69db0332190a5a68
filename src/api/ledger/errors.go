package ledger

import "errors"

// Kind is a machine-readable error class surfaced to API clients.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindAlreadyStarred     Kind = "already_starred"
	KindNothingToRemove    Kind = "nothing_to_remove"
	KindNoTarget           Kind = "no_target"
	KindDigestUsed         Kind = "digest_used"
	KindPaymentNotVerified Kind = "payment_not_verified"
	KindStoreUnavailable   Kind = "store_unavailable"
)

type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Msg }

func errf(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

// KindOf classifies any error returned by this package. Unknown errors are
// treated as store failures: the transaction rolled back, retrying is safe.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindStoreUnavailable
}
