package rubyshd

import (
	"errors"
	"io/fs"
)

// StatusError carries the Status a failed load should surface as, letting the
// router map failures without string matching.
type StatusError struct {
	status Status
	msg    string
}

func (self *StatusError) Status() Status {
	return self.status
}

func (self *StatusError) Error() string {
	if self.msg == `` {
		return self.status.String()
	} else {
		return self.msg
	}
}

func ErrorForStatus(status Status, msg string) error {
	return &StatusError{
		status: status,
		msg:    msg,
	}
}

var ErrNotFound = errors.New(`no such file or directory`)

// IsNotFound reports whether err represents the expected file-absent branch
// of the resolution chain, as opposed to a real failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// StatusForError maps a resolution failure onto the Status it should be
// reported as.
func StatusForError(err error) Status {
	var statusErr *StatusError

	if errors.As(err, &statusErr) {
		return statusErr.Status()
	} else if IsNotFound(err) {
		return StatusNotFound
	} else {
		return StatusOtherServerError
	}
}
