package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserID_AcceptsStringAndNumber(t *testing.T) {
	tests := []struct {
		name string
		body string
		want UserID
	}{
		{"string", `{"userId":"mock-user-id","accessToken":"a"}`, "mock-user-id"},
		{"number", `{"userId":42,"accessToken":"a"}`, "42"},
		{"null", `{"userId":null,"accessToken":"a"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp LoginResponse
			require.NoError(t, json.Unmarshal([]byte(tt.body), &resp))
			assert.Equal(t, tt.want, resp.UserID)
		})
	}
}

func TestUserID_RejectsOtherTypes(t *testing.T) {
	var resp LoginResponse
	assert.Error(t, json.Unmarshal([]byte(`{"userId":true}`), &resp))
	assert.Error(t, json.Unmarshal([]byte(`{"userId":1.5}`), &resp))
}

func TestValidate_LoginResponse(t *testing.T) {
	assert.NoError(t, Validate(&LoginResponse{UserID: "u", AccessToken: "a"}))
	assert.Error(t, Validate(&LoginResponse{UserID: "u"}))
	assert.Error(t, Validate(&LoginResponse{AccessToken: "a"}))
}

func TestValidate_TokenResponse(t *testing.T) {
	assert.NoError(t, Validate(&TokenResponse{AccessToken: "a"}))
	assert.Error(t, Validate(&TokenResponse{}))
}
