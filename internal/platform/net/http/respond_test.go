package http

import (
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	perr "dayonme/internal/platform/errors"
	pnet "dayonme/internal/platform/net"
)

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rr.Body.String())
	}
	return env
}

func TestHandle_Statuses(t *testing.T) {
	tests := []struct {
		name   string
		resp   Response
		status int
		notice string
	}{
		{"ok", OK(map[string]int{"a": 1}), stdhttp.StatusOK, ""},
		{"created", Created("x"), stdhttp.StatusCreated, ""},
		{"zero status defaults to 200", Response{Body: 1}, stdhttp.StatusOK, ""},
		{"degraded", Degraded("c", "comment saved; refresh to see it"), stdhttp.StatusOK, "comment saved; refresh to see it"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(stdhttp.MethodGet, "/", nil)
			req = req.WithContext(pnet.WithRequest(req.Context(), "rid-1"))
			rr := httptest.NewRecorder()
			Handle(func(*stdhttp.Request) Response { return tt.resp })(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			env := decodeEnvelope(t, rr)
			if env.StatusCode != tt.status || env.RequestID != "rid-1" || env.Notice != tt.notice {
				t.Fatalf("envelope = %+v", env)
			}
		})
	}
}

func TestHandle_NoContent(t *testing.T) {
	rr := httptest.NewRecorder()
	Handle(func(*stdhttp.Request) Response { return NoContent() })(rr, httptest.NewRequest(stdhttp.MethodDelete, "/", nil))
	if rr.Code != stdhttp.StatusNoContent || rr.Body.Len() != 0 {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestHandle_ErrorMapsCodeAndField(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{perr.WithField(perr.Validationf("content is required"), "content"), stdhttp.StatusBadRequest},
		{perr.Unavailablef("offline"), stdhttp.StatusServiceUnavailable},
		{perr.Conflictf("like already in flight"), stdhttp.StatusConflict},
		{perr.NotFoundf("post 7"), stdhttp.StatusNotFound},
		{perr.Unauthorizedf("login required"), stdhttp.StatusUnauthorized},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		Handle(func(*stdhttp.Request) Response { return Error(tt.err) })(rr, httptest.NewRequest(stdhttp.MethodPost, "/", nil))
		if rr.Code != tt.status {
			t.Fatalf("%v: status = %d, want %d", tt.err, rr.Code, tt.status)
		}
		env := decodeEnvelope(t, rr)
		if env.Code != perr.CodeOf(tt.err) || env.Error == "" {
			t.Fatalf("envelope = %+v", env)
		}
	}

	rr := httptest.NewRecorder()
	RespondError(rr, httptest.NewRequest(stdhttp.MethodPost, "/", nil), perr.WithField(perr.Validationf("bad"), "content"))
	if env := decodeEnvelope(t, rr); env.Field != "content" {
		t.Fatalf("field = %q", env.Field)
	}
}
