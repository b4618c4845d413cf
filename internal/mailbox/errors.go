package mailbox

import (
	"errors"
	"fmt"

	"github.com/nhle/household-bot/internal/model"
)

// ConnectionError reports a failure that leaves no usable mail session:
// dialing, the TLS handshake, authentication, or opening the mailbox.
// Failures on individual messages are never reported this way.
type ConnectionError struct {
	Account  string
	Protocol model.Protocol
	Op       string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s for %s: %v", e.Protocol, e.Op, e.Account, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err (or any error in its chain) is a
// ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

func connectionError(acc model.MailAccount, op string, err error) *ConnectionError {
	return &ConnectionError{
		Account:  acc.Email,
		Protocol: acc.Protocol,
		Op:       op,
		Err:      err,
	}
}
