package wallet

import (
	"errors"
	"fmt"
)

// Provider error codes, as reported by dAPI-style wallet providers.
const (
	CodeNoProvider         = "NO_PROVIDER"
	CodeConnectionDenied   = "CONNECTION_DENIED"
	CodeCanceled           = "CANCELED"
	CodeUnsupportedNetwork = "UNSUPPORTED_NETWORK"
	CodeMalformedInput     = "MALFORMED_INPUT"
	CodeRPCError           = "RPC_ERROR"
)

// Error is a wallet provider error with a stable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCode reports whether err is a provider error with the given code.
func IsCode(err error, code string) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Code == code
}

// userMessages maps provider error codes to the messages surfaced to users.
var userMessages = map[string]string{
	CodeNoProvider:         "No wallet found. Install a wallet extension and reload.",
	CodeConnectionDenied:   "Connection request was rejected in the wallet.",
	CodeCanceled:           "The wallet request was canceled.",
	CodeUnsupportedNetwork: "The wallet does not know the requested network.",
	CodeMalformedInput:     "The wallet rejected the request as malformed.",
	CodeRPCError:           "The wallet reported an internal error. Try again.",
}

// UserMessage maps an error from the wallet stack to a single user-facing
// message. Unknown errors get a generic fallback rather than leaking internals.
func UserMessage(err error) string {
	var perr *Error
	if errors.As(err, &perr) {
		if msg, ok := userMessages[perr.Code]; ok {
			return msg
		}
	}
	if errors.Is(err, ErrNoAccounts) {
		return "The wallet returned no accounts. Unlock it and try again."
	}
	return "Something went wrong talking to the wallet. Try again."
}
