package domain

import (
	"encoding/json"
	"testing"

	"github.com/smallbiznis/premium/internal/reference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignPayloadValidate(t *testing.T) {
	owner := reference.Ref{Type: "user", Identifiers: map[string]any{"id": "1"}}
	valid := AssignPayload{Feature: "storageQuota", Owner: owner, Source: owner, Params: Params{}}
	require.NoError(t, valid.Validate())

	cases := map[string]func(p *AssignPayload){
		"feature":   func(p *AssignPayload) { p.Feature = "" },
		"blank":     func(p *AssignPayload) { p.Feature = "  " },
		"owner":     func(p *AssignPayload) { p.Owner = reference.Ref{} },
		"source":    func(p *AssignPayload) { p.Source = reference.Ref{Type: "user"} },
		"no params": func(p *AssignPayload) { p.Params = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := valid
			mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidPayload)
		})
	}
}

func TestRemovePayloadValidate(t *testing.T) {
	require.NoError(t, RemovePayload{AssignmentID: 1, UserID: 2}.Validate())
	assert.ErrorIs(t, RemovePayload{UserID: 2}.Validate(), ErrInvalidPayload)
	assert.ErrorIs(t, RemovePayload{AssignmentID: -1, UserID: 2}.Validate(), ErrInvalidPayload)
	assert.ErrorIs(t, RemovePayload{AssignmentID: 1}.Validate(), ErrInvalidPayload)
}

func TestReconcilePayloadValidate(t *testing.T) {
	var p ReconcilePayload
	require.NoError(t, json.Unmarshal([]byte(`{"feature":"f","old_config":{"active":true,"limit":3},"user_id":9}`), &p))
	require.NoError(t, p.Validate())

	p.OldConfig = Params{"limit": 3}
	assert.ErrorIs(t, p.Validate(), ErrInvalidPayload)

	p.OldConfig = Params{}
	assert.ErrorIs(t, p.Validate(), ErrInvalidPayload)

	p.OldConfig = Params{"active": "yes"}
	assert.ErrorIs(t, p.Validate(), ErrInvalidPayload)
}
