package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReadiness struct{ ready bool }

func (f *fakeReadiness) Ready() bool { return f.ready }

func TestHealth(t *testing.T) {
	db := &fakeReadiness{}
	h := NewHealthHandler(db)

	get := func() (int, healthResponse) {
		rec := httptest.NewRecorder()
		h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		var body healthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		return rec.Code, body
	}

	code, body := get()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "starting", body.Status)

	h.RecordInitError(errors.New("sqlite: initialization failed during open: permission denied"))
	code, body = get()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "failed", body.Status)
	assert.Contains(t, body.Error, "permission denied")

	// a later successful retry wins over the recorded failure
	db.ready = true
	code, body = get()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body.Status)
	assert.Empty(t, body.Error)
}
