package job

import (
	"time"

	"github.com/xraph/queuectl/id"
)

// Patch is the set of fields written by a conditional update.
//
// State, WorkerID, NextRunAt, and UpdatedAt are always written; id.Nil and
// a nil NextRunAt store NULL. The pointer fields below them are written
// only when non-nil, so a patch can leave the previous execution's result
// in place.
type Patch struct {
	State     State
	WorkerID  id.WorkerID
	NextRunAt *time.Time
	UpdatedAt time.Time

	Attempts     *int
	LastExitCode *int
	LastError    *string
	Output       *string
}

// Apply writes p onto j.
func (p Patch) Apply(j *Job) {
	j.State = p.State
	j.WorkerID = p.WorkerID
	j.NextRunAt = copyTime(p.NextRunAt)
	j.UpdatedAt = p.UpdatedAt
	if p.Attempts != nil {
		j.Attempts = *p.Attempts
	}
	if p.LastExitCode != nil {
		v := *p.LastExitCode
		j.LastExitCode = &v
	}
	if p.LastError != nil {
		v := *p.LastError
		j.LastError = &v
	}
	if p.Output != nil {
		v := *p.Output
		j.Output = &v
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T { return &v }
