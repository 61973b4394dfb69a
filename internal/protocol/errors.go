package protocol

const (
	// Protocol/transport validation.
	ErrBadProtocol = "E_BAD_PROTOCOL"
	ErrBadMessage  = "E_BAD_MESSAGE"

	// Action layer.
	ErrBadAction = "E_BAD_ACTION"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadProtocol: {},
	ErrBadMessage:  {},
	ErrBadAction:   {},
	ErrInternal:    {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
