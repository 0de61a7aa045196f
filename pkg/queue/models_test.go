package queue

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_JSON(t *testing.T) {
	req := NewRequest(RequestTypeLoopBoundary, uuid.New())

	data, err := req.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"loop_boundary"`)

	got, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, req.RequestID, got.RequestID)
	assert.Equal(t, req.GameStateID, got.GameStateID)
	assert.True(t, req.EnqueuedAt.Equal(got.EnqueuedAt))

	_, err = FromJSON([]byte("nope"))
	assert.Error(t, err)
}

func TestRequest_Validate(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name    string
		req     *Request
		wantErr bool
	}{
		{"boundary", NewRequest(RequestTypeLoopBoundary, id), false},
		{"reset", NewRequest(RequestTypeLoopReset, id), false},
		{"no id", &Request{Type: RequestTypeLoopReset, GameStateID: id}, true},
		{"no game", &Request{RequestID: "r", Type: RequestTypeLoopReset}, true},
		{"unknown type", &Request{RequestID: "r", Type: "chat", GameStateID: id}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
