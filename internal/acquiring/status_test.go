package acquiring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		status   Status
		known    bool
		terminal bool
	}{
		{StatusNew, true, false},
		{StatusAuthorized, true, false},
		{StatusConfirmed, true, false},
		{StatusCompleted, true, true},
		{StatusRejected, true, true},
		{StatusRefunded, true, true},
		{StatusPartialRefunded, true, false},
		{StatusCancelled, true, true},
		{StatusError, true, true},
		{Status("DEADLINE_EXPIRED"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.known, tt.status.IsKnown())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestStatus_Message(t *testing.T) {
	assert.Equal(t, "Confirmed", StatusConfirmed.Message())
	assert.Equal(t, "Unknown status", Status("WHATEVER").Message())
}

func TestStatus_Advances(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusNew, StatusFormShowed, true},
		{StatusNew, StatusAuthorized, true},
		{StatusAuthorized, StatusConfirmed, true},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusRefunded, true},
		{StatusAuthorizing, StatusRejected, true},
		{StatusConfirmed, StatusFormShowed, false},
		{StatusConfirmed, StatusNew, false},
		{StatusConfirmed, StatusConfirmed, false},
		{StatusAuthorized, StatusChecking, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusError, StatusNew, false},
		{StatusNew, Status("DEADLINE_EXPIRED"), false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.Advances(tt.to))
		})
	}
}
