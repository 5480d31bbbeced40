package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"

	"github.com/gin-gonic/gin"
)

// CodeRecorder captures confirmation codes instead of delivering them,
// standing in for the notification webhook during system tests.
type CodeRecorder struct {
	mu    sync.Mutex
	codes map[string]string
}

func NewCodeRecorder() *CodeRecorder {
	return &CodeRecorder{codes: make(map[string]string)}
}

func (r *CodeRecorder) DeliverCode(_ context.Context, _, confirmationID, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[confirmationID] = code
	return nil
}

func (r *CodeRecorder) Code(confirmationID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codes[confirmationID]
}

func doJSON(router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}
