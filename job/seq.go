package job

import (
	"iter"
	"sync/atomic"

	"github.com/xraph/queuectl"
)

// SinglePass wraps seq so that ranging over it a second time yields
// queuectl.ErrSequenceConsumed instead of re-running the query.
func SinglePass(seq iter.Seq2[*Job, error]) iter.Seq2[*Job, error] {
	var used atomic.Bool
	return func(yield func(*Job, error) bool) {
		if used.Swap(true) {
			yield(nil, queuectl.ErrSequenceConsumed)
			return
		}
		seq(yield)
	}
}

// Fail returns a sequence that yields err once.
func Fail(err error) iter.Seq2[*Job, error] {
	return func(yield func(*Job, error) bool) {
		yield(nil, err)
	}
}

// Collect drains seq into a slice, stopping at the first error.
func Collect(seq iter.Seq2[*Job, error]) ([]*Job, error) {
	var out []*Job
	for j, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

// First returns the first job of seq, or nil if it is empty.
func First(seq iter.Seq2[*Job, error]) (*Job, error) {
	for j, err := range seq {
		return j, err
	}
	return nil, nil
}
