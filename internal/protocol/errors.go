package protocol

const (
	// Authentication-class rejections. Terminal: no retry (any of these in
	// a ConnectionRefused means the credentials or client are wrong, not
	// the network).
	ErrInvalidSlot          = "InvalidSlot"
	ErrInvalidGame          = "InvalidGame"
	ErrInvalidPassword      = "InvalidPassword"
	ErrIncompatibleVersion  = "IncompatibleVersion"
	ErrInvalidItemsHandling = "InvalidItemsHandling"
)

var authFailureCodes = map[string]struct{}{
	ErrInvalidSlot:          {},
	ErrInvalidGame:          {},
	ErrInvalidPassword:      {},
	ErrIncompatibleVersion:  {},
	ErrInvalidItemsHandling: {},
}

// IsAuthFailure reports whether a ConnectionRefused error code is an
// authentication-class rejection rather than a transient transport problem.
func IsAuthFailure(code string) bool {
	_, ok := authFailureCodes[code]
	return ok
}

// AnyAuthFailure reports whether any code in a refusal is terminal.
func AnyAuthFailure(codes []string) bool {
	for _, c := range codes {
		if IsAuthFailure(c) {
			return true
		}
	}
	return false
}
