package domain

import "errors"

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindBadRequest
	KindUnauthorized
	KindForbidden
)

// Error is a domain failure with a client-facing message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// KindOf returns the kind of the first domain error in err's chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

var (
	// ErrCrossNotFound is returned when a referenced cross does not exist.
	ErrCrossNotFound = &Error{Kind: KindNotFound, Message: "cross not found"}
	// ErrTaskNotFound is returned when a referenced task does not exist.
	ErrTaskNotFound = &Error{Kind: KindNotFound, Message: "task not found"}
	// ErrUserNotFound is returned when a referenced user does not exist.
	ErrUserNotFound = &Error{Kind: KindNotFound, Message: "user not found"}

	// ErrCrossFinished is returned when starting a cross that already ended.
	ErrCrossFinished = &Error{Kind: KindConflict, Message: "cross has already finished and cannot be started again"}
	// ErrCrossAlreadyStarted guards the single started cross.
	ErrCrossAlreadyStarted = &Error{Kind: KindConflict, Message: "some cross has already started"}
	// ErrCrossNotStarted is returned for team actions outside a running cross.
	ErrCrossNotStarted = &Error{Kind: KindConflict, Message: "cross not started"}
	// ErrHintOutOfOrder is returned when hints are requested out of sequence.
	ErrHintOutOfOrder = &Error{Kind: KindConflict, Message: "hint requested out of order"}

	// ErrCrossEnded is returned for submissions after the end time.
	ErrCrossEnded = &Error{Kind: KindBadRequest, Message: "cross finished"}
	// ErrInvalidHintNumber is returned for hint numbers outside 0..2.
	ErrInvalidHintNumber = &Error{Kind: KindBadRequest, Message: "hint number should be in [0, 1, 2]"}
	// ErrAnswerRequired is returned when no answer text was submitted.
	ErrAnswerRequired = &Error{Kind: KindBadRequest, Message: "answer is required"}
	// ErrUsernameTaken is returned when a username is already registered.
	ErrUsernameTaken = &Error{Kind: KindBadRequest, Message: "a user with that username already exists"}
	// ErrInvalidInput wraps validation failures.
	ErrInvalidInput = &Error{Kind: KindBadRequest, Message: "invalid input"}

	// ErrInvalidCredentials is returned by login.
	ErrInvalidCredentials = &Error{Kind: KindUnauthorized, Message: "unable to log in with provided credentials"}
	// ErrInvalidToken is returned for missing, expired or revoked tokens.
	ErrInvalidToken = &Error{Kind: KindUnauthorized, Message: "invalid or expired token"}
	// ErrForbidden is returned when a non-staff user reaches an admin route.
	ErrForbidden = &Error{Kind: KindForbidden, Message: "you do not have permission to perform this action"}
)
