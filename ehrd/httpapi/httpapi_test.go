package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mentalspace/ehr/ehrd/httpapi"
)

func TestWrite(t *testing.T) {
	t.Parallel()

	rw := httptest.NewRecorder()
	httpapi.Write(rw, http.StatusOK, httpapi.Response{Message: "ok"})
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "application/json; charset=utf-8", rw.Header().Get("Content-Type"))

	var resp httpapi.Response
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Message)
}

func TestRead(t *testing.T) {
	t.Parallel()

	type request struct {
		Value string `json:"value" validate:"required"`
	}

	t.Run("OK", func(t *testing.T) {
		t.Parallel()
		rw := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"value":"hi"}`))
		var req request
		require.True(t, httpapi.Read(rw, r, &req))
		require.Equal(t, "hi", req.Value)
	})

	t.Run("EmptyBody", func(t *testing.T) {
		t.Parallel()
		rw := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBuffer(nil))
		var req request
		require.False(t, httpapi.Read(rw, r, &req))
		require.Equal(t, http.StatusBadRequest, rw.Code)
	})

	t.Run("Validates", func(t *testing.T) {
		t.Parallel()
		rw := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{}`))
		var req request
		require.False(t, httpapi.Read(rw, r, &req))
		require.Equal(t, http.StatusBadRequest, rw.Code)

		var resp httpapi.Response
		require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &resp))
		require.Len(t, resp.Errors, 1)
		require.Equal(t, "value", resp.Errors[0].Field)
	})
}

func TestErrorShapes(t *testing.T) {
	t.Parallel()

	// Denials and credential failures carry no detail at all; the body
	// must not vary with the cause.
	rw := httptest.NewRecorder()
	httpapi.Forbidden(rw)
	require.Equal(t, http.StatusForbidden, rw.Code)
	require.JSONEq(t, `{"message":"forbidden"}`, rw.Body.String())

	rw = httptest.NewRecorder()
	httpapi.Unauthorized(rw)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	require.JSONEq(t, `{"message":"unauthorized"}`, rw.Body.String())
}
