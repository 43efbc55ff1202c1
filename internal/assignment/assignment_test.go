package assignment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/chorewheel/internal/model"
)

const (
	alice int64 = 1
	bob   int64 = 2
	carol int64 = 3
)

func TestResolveRoundRobin(t *testing.T) {
	pool := []int64{alice, bob, carol}
	want := []int64{alice, bob, carol, alice, bob, carol, alice}
	for seq, w := range want {
		assert.Equal(t, []int64{w}, Resolve(model.AssignRoundRobin, nil, pool, seq), "seq %d", seq)
	}
}

func TestResolveOutOfOrder(t *testing.T) {
	pool := []int64{alice, bob, carol}
	// Asking for later slots first must not change earlier answers.
	assert.Equal(t, []int64{alice}, Resolve(model.AssignRoundRobin, nil, pool, 30))
	assert.Equal(t, []int64{bob}, Resolve(model.AssignRoundRobin, nil, pool, 1))
	assert.Equal(t, []int64{alice}, Resolve(model.AssignRoundRobin, nil, pool, 0))
}

func TestResolveSingleMemberPool(t *testing.T) {
	for seq := range 5 {
		assert.Equal(t, []int64{bob}, Resolve(model.AssignRoundRobin, nil, []int64{bob}, seq))
	}
}

func TestResolveFixed(t *testing.T) {
	fixed := []int64{carol, alice}
	for seq := range 4 {
		assert.Equal(t, []int64{carol, alice}, Resolve(model.AssignFixed, fixed, []int64{bob}, seq))
	}
}

func TestResolveMixed(t *testing.T) {
	tests := []struct {
		name  string
		fixed []int64
		pool  []int64
		slot  int
		want  []int64
	}{
		{"union", []int64{alice}, []int64{bob, carol}, 0, []int64{alice, bob}},
		{"union next slot", []int64{alice}, []int64{bob, carol}, 1, []int64{alice, carol}},
		{"rotating member already fixed", []int64{alice}, []int64{alice, bob}, 2, []int64{alice}},
		{"pool only", nil, []int64{bob, carol}, 1, []int64{carol}},
		{"fixed only", []int64{alice, bob}, nil, 7, []int64{alice, bob}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(model.AssignMixed, tt.fixed, tt.pool, tt.slot))
		})
	}
}

func TestResolveReturnsCopy(t *testing.T) {
	fixed := []int64{alice, bob}
	got := Resolve(model.AssignFixed, fixed, nil, 0)
	got[0] = carol
	assert.Equal(t, alice, fixed[0])
}

func TestRotateNegativeSlot(t *testing.T) {
	assert.Equal(t, carol, Rotate([]int64{alice, bob, carol}, -1))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    model.AssignmentMode
		fixed   []int64
		pool    []int64
		wantErr bool
	}{
		{"fixed ok", model.AssignFixed, []int64{alice}, nil, false},
		{"fixed empty", model.AssignFixed, nil, []int64{alice}, true},
		{"round robin ok", model.AssignRoundRobin, nil, []int64{alice}, false},
		{"round robin empty", model.AssignRoundRobin, []int64{alice}, nil, true},
		{"mixed fixed only", model.AssignMixed, []int64{alice}, nil, false},
		{"mixed pool only", model.AssignMixed, nil, []int64{bob}, false},
		{"mixed empty", model.AssignMixed, nil, nil, true},
		{"duplicate fixed", model.AssignFixed, []int64{alice, alice}, nil, true},
		{"unknown mode", model.AssignmentMode("lottery"), []int64{alice}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.mode, tt.fixed, tt.pool)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidAssignment), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
