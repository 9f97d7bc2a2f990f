// ABOUTME: Tests for JSON-RPC envelope decoding and response construction.
// ABOUTME: Focuses on id presence rules and error/result serialization.

package mcp

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest_IDPresence(t *testing.T) {
	t.Run("absent id is a notification", func(t *testing.T) {
		req, err := DecodeRequest([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
		require.NoError(t, err)
		assert.True(t, req.IsNotification())
	})

	t.Run("null id is a request", func(t *testing.T) {
		req, err := DecodeRequest([]byte(`{"jsonrpc":"2.0","id":null,"method":"tools/list"}`))
		require.NoError(t, err)
		assert.False(t, req.IsNotification())
		assert.Equal(t, "null", string(req.ID))
	})

	t.Run("string and number ids are kept raw", func(t *testing.T) {
		req, err := DecodeRequest([]byte(`{"jsonrpc":"2.0","id":"abc","method":"x"}`))
		require.NoError(t, err)
		assert.Equal(t, `"abc"`, string(req.ID))

		req, err = DecodeRequest([]byte(`{"jsonrpc":"2.0","id":42,"method":"x","params":{"a":1}}`))
		require.NoError(t, err)
		assert.Equal(t, "42", string(req.ID))
		assert.JSONEq(t, `{"a":1}`, string(req.Params))
	})

	t.Run("non-object is rejected", func(t *testing.T) {
		_, err := DecodeRequest([]byte(`[1,2,3]`))
		assert.Error(t, err)
		var invalid *InvalidRequestError
		assert.False(t, errors.As(err, &invalid))
	})
}

func TestDecodeRequest_WrongMemberTypes(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantID string
	}{
		{name: "numeric method", input: `{"jsonrpc":"2.0","id":1,"method":5}`, wantID: "1"},
		{name: "string id is echoed", input: `{"jsonrpc":"2.0","id":"req-9","method":["x"]}`, wantID: `"req-9"`},
		{name: "numeric jsonrpc", input: `{"jsonrpc":2,"id":3,"method":"ping"}`, wantID: "3"},
		{name: "notification with boolean method", input: `{"jsonrpc":"2.0","method":true}`, wantID: ""},
		{name: "object id is not echoed", input: `{"jsonrpc":"2.0","id":{"a":1},"method":"ping"}`, wantID: ""},
		{name: "boolean id is not echoed", input: `{"jsonrpc":"2.0","id":true,"method":"ping"}`, wantID: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest([]byte(tt.input))
			var invalid *InvalidRequestError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.wantID, string(invalid.ID))
		})
	}
}

func TestNewError_Serialization(t *testing.T) {
	resp := NewError(nil, ParseError, "Parse error", nil)
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`, string(data))

	resp = NewError(json.RawMessage(`7`), InternalError, "Internal error", "boom")
	data, err = json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"error":{"code":-32603,"message":"Internal error","data":"boom"}}`, string(data))
}

func TestNewResult_Serialization(t *testing.T) {
	resp, err := NewResult(json.RawMessage(`"r1"`), ToolError("nope"))
	require.NoError(t, err)
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"jsonrpc":"2.0","id":"r1","result":{"content":[{"type":"text","text":"Error: nope"}],"isError":true}}`,
		string(data))
}

func TestNewRequest_Notification(t *testing.T) {
	req, err := NewRequest(nil, MethodNotificationInitialized, map[string]any{})
	require.NoError(t, err)
	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"notifications/initialized","params":{}}`, string(data))
}

func TestIDKey(t *testing.T) {
	assert.Equal(t, IDKey(json.RawMessage(`7`)), IDKey(json.RawMessage(` 7 `)))
	assert.NotEqual(t, IDKey(json.RawMessage(`7`)), IDKey(json.RawMessage(`"7"`)))
	assert.Equal(t, `{"a":1}`, IDKey(json.RawMessage(`{ "a" : 1 }`)))
}
