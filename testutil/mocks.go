package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockBiliServer creates a test server that mocks Bilibili live API responses
type MockBiliServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockBiliServer creates a new mock Bilibili API server
func NewMockBiliServer(t *testing.T) *MockBiliServer {
	t.Helper()
	m := &MockBiliServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockHistoryResponse adds a handler for the gethistory endpoint returning the
// given room entries.
func (m *MockBiliServer) MockHistoryResponse(entries []map[string]interface{}) {
	m.Handlers["/xlive/web-room/v1/dM/gethistory"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"code":    0,
			"message": "0",
			"data": map[string]interface{}{
				"admin": []map[string]interface{}{},
				"room":  entries,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockProfileResponse adds a handler for the user profile endpoint with the
// given raw body.
func (m *MockBiliServer) MockProfileResponse(body string) {
	m.Handlers["/x/space/acc/info"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}
