package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// PerformRequest sends a request with an optional JSON body through handler
// and returns the recorder.
func PerformRequest(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = ToJSONReader(t, body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// DecodeJSON parses the recorded body into T.
func DecodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "Failed to parse JSON response: %s", w.Body.String())
	return out
}

// AssertErrorResponse asserts an error envelope with the given status and code.
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()

	assert.Equal(t, status, w.Code, w.Body.String())
	resp := DecodeJSON[map[string]any](t, w)
	assert.Equal(t, false, resp["success"])

	errObj, ok := resp["error"].(map[string]any)
	require.True(t, ok, "Expected error object in response")
	assert.Equal(t, code, errObj["code"])
}

// ToJSONReader converts a value to a JSON io.Reader.
func ToJSONReader(t *testing.T, v any) io.Reader {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err, "Failed to marshal to JSON")
	return bytes.NewReader(data)
}
