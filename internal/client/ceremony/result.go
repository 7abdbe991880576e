package ceremony

import (
	"fmt"

	"github.com/dmitrijs2005/hotelauth/internal/client/models"
)

// Kind tags the outcome of a ceremony.
type Kind int

const (
	Success Kind = iota + 1
	// Cancelled: the user dismissed the prompt or it timed out.
	Cancelled
	// Unsupported: no usable authenticator or algorithm on this device.
	Unsupported
	// AlreadyRegistered: this device already holds a passkey for the
	// account.
	AlreadyRegistered
	Failed
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Cancelled:
		return "cancelled"
	case Unsupported:
		return "unsupported"
	case AlreadyRegistered:
		return "already_registered"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Result is what a ceremony ends with. Session is set by a successful
// login, Passkey by a successful registration. Reason is a message fit for
// the user; Err the underlying error, matchable with errors.Is against the
// common sentinels.
type Result struct {
	Kind    Kind
	Session *models.Session
	Passkey *models.Passkey
	Reason  string
	Err     error
}

func (r Result) OK() bool {
	return r.Kind == Success
}
