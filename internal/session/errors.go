package session

import (
	"errors"
	"net"
)

var (
	ErrNotLoading       = errors.New("session already loaded")
	ErrNotInProgress    = errors.New("session is not in progress")
	ErrClosed           = errors.New("session closed")
	ErrLastQuestion     = errors.New("already on the last question")
	ErrNotLastQuestion  = errors.New("submit is only available on the last question")
	ErrUnknownQuestion  = errors.New("question is not part of this session")
	ErrNoQuestions      = errors.New("exam has no questions")
	ErrAlreadySubmitted = errors.New("exam already submitted")
	ErrUnreachable      = errors.New("exam service unreachable")
)

// IsTerminal reports whether a failed submit still means the exam is over:
// the server already holds a submission, or the request never got an answer.
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAlreadySubmitted) || errors.Is(err, ErrUnreachable) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
