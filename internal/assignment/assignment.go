// Package assignment decides who is responsible for a single occurrence of
// a recurring chore. Every function here is a pure function of its inputs.
package assignment

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dukerupert/chorewheel/internal/model"
)

// ErrInvalidAssignment is wrapped by every error returned from Validate.
var ErrInvalidAssignment = errors.New("invalid assignment")

// Validate checks that the participant lists satisfy mode.
func Validate(mode model.AssignmentMode, fixed, pool []int64) error {
	switch mode {
	case model.AssignFixed:
		if len(fixed) == 0 {
			return fmt.Errorf("%w: fixed mode needs at least one assignee", ErrInvalidAssignment)
		}
	case model.AssignRoundRobin:
		if len(pool) == 0 {
			return fmt.Errorf("%w: round robin mode needs a non-empty pool", ErrInvalidAssignment)
		}
	case model.AssignMixed:
		if len(fixed) == 0 && len(pool) == 0 {
			return fmt.Errorf("%w: mixed mode needs fixed assignees or a pool", ErrInvalidAssignment)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidAssignment, mode)
	}
	if hasDuplicates(fixed) {
		return fmt.Errorf("%w: fixed assignees contain duplicates", ErrInvalidAssignment)
	}
	return nil
}

// Resolve returns the members responsible for the occurrence at rotation
// slot. The result is always a fresh slice.
//
// A pool of one member is a legal degenerate rotation. In mixed mode the
// rotating member is appended after the fixed set unless already part of it.
func Resolve(mode model.AssignmentMode, fixed, pool []int64, slot int) []int64 {
	switch mode {
	case model.AssignFixed:
		return slices.Clone(fixed)
	case model.AssignRoundRobin:
		if len(pool) == 0 {
			return []int64{}
		}
		return []int64{Rotate(pool, slot)}
	case model.AssignMixed:
		out := slices.Clone(fixed)
		if out == nil {
			out = []int64{}
		}
		if len(pool) > 0 {
			if m := Rotate(pool, slot); !slices.Contains(out, m) {
				out = append(out, m)
			}
		}
		return out
	}
	return []int64{}
}

// Rotate picks the pool member whose turn slot is. pool must be non-empty.
func Rotate(pool []int64, slot int) int64 {
	i := slot % len(pool)
	if i < 0 {
		i += len(pool)
	}
	return pool[i]
}

func hasDuplicates(ids []int64) bool {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
