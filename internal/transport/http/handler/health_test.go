package handler

import (
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
)

type stubWorker bool

func (w stubWorker) Running() bool { return bool(w) }

type stubBreaker gobreaker.State

func (b stubBreaker) State() gobreaker.State { return gobreaker.State(b) }

func TestCheckWorker(t *testing.T) {
	assert.Equal(t, dependencyStatus{OK: true}, checkWorker(stubWorker(true)))
	assert.Equal(t, dependencyStatus{OK: false, Message: "stopped"}, checkWorker(stubWorker(false)))
}

func TestCheckPublisher(t *testing.T) {
	cases := []struct {
		state gobreaker.State
		want  dependencyStatus
	}{
		{gobreaker.StateClosed, dependencyStatus{OK: true, Message: "circuit closed"}},
		{gobreaker.StateHalfOpen, dependencyStatus{OK: true, Message: "circuit half-open"}},
		{gobreaker.StateOpen, dependencyStatus{OK: false, Message: "circuit open"}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, checkPublisher(stubBreaker(tc.state)), tc.state.String())
	}
}
