package bind

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	perr "dayonme/internal/platform/errors"
	kit "dayonme/internal/platform/testkit"
)

type commentBody struct {
	Content     string `json:"content" validate:"required,min=1,max=10,no_ctrl"`
	IsAnonymous bool   `json:"is_anonymous"`
}

func TestParseJSON_Success(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"content":"오늘 맑음","is_anonymous":true}`))
	got, err := ParseJSON[commentBody](req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Content != "오늘 맑음" || !got.IsAnonymous {
		t.Fatalf("got %+v", got)
	}
}

func TestParseJSON_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
		opts []JSONOptions
		code perr.ErrorCode
	}{
		{"empty body", "", nil, perr.ErrorCodeJSON},
		{"invalid json", `{"content":`, nil, perr.ErrorCodeJSON},
		{"unknown field", `{"content":"x","nope":1}`, nil, perr.ErrorCodeJSON},
		{"too large", `{"content":"xxxxxxxx"}`, []JSONOptions{{MaxBytes: 8, DisallowUnknown: true}}, perr.ErrorCodeJSON},
		{"missing required", `{"is_anonymous":true}`, nil, perr.ErrorCodeValidation},
		{"over max runes", `{"content":"가나다라마바사아자차카"}`, nil, perr.ErrorCodeValidation},
		{"control char", `{"content":"a\u0007b"}`, nil, perr.ErrorCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			_, err := ParseJSON[commentBody](req, tt.opts...)
			if perr.CodeOf(err) != tt.code {
				t.Fatalf("code = %v, want %v (%v)", perr.CodeOf(err), tt.code, err)
			}
		})
	}
}

func TestParseJSON_AllowEmptyBody(t *testing.T) {
	type opt struct {
		Note string `json:"note"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	got, err := ParseJSON[opt](req, JSONOptions{AllowEmptyBody: true, MaxBytes: 16})
	if err != nil || got != (opt{}) {
		t.Fatalf("got %+v err %v", got, err)
	}
}

func TestParseJSON_TrailingData_Seam(t *testing.T) {
	kit.Swap(t, &jsonMore, func(*json.Decoder) bool { return true })
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"content":"x"}`))
	if _, err := ParseJSON[commentBody](req); perr.CodeOf(err) != perr.ErrorCodeJSON {
		t.Fatalf("expected JSON error, got %v", err)
	}
}

func TestValidate_FieldAndMessage(t *testing.T) {
	err := Validate(commentBody{Content: ""})
	e, ok := perr.As(err)
	if !ok {
		t.Fatalf("expected perr.Error, got %T", err)
	}
	if e.Code() != perr.ErrorCodeValidation || e.Field() != "content" {
		t.Fatalf("code=%v field=%q", e.Code(), e.Field())
	}

	err = Validate(commentBody{Content: "0123456789X"})
	kit.MustContain(t, err.Error(), "content must be at most 10")

	err = Validate(commentBody{Content: "a\x00"})
	kit.MustContain(t, err.Error(), "must not contain control characters")
}

func TestValidate_NewlineAndTabAllowed(t *testing.T) {
	if err := Validate(commentBody{Content: "a\n\tb"}); err != nil {
		t.Fatalf("newline/tab should pass: %v", err)
	}
}

func TestValidate_NonStructIsJSONError(t *testing.T) {
	if err := Validate(42); perr.CodeOf(err) != perr.ErrorCodeJSON {
		t.Fatalf("expected JSON code for invalid validation, got %v", err)
	}
}

func TestValidationFieldAndMessage_GenericError(t *testing.T) {
	f, m := ValidationFieldAndMessage(perr.New(perr.ErrorCodeUnknown, "x"))
	if f != "" || m != "x" {
		t.Fatalf("got %q %q", f, m)
	}
	if f, m := ValidationFieldAndMessage(nil); f != "" || m != "" {
		t.Fatalf("nil -> %q %q", f, m)
	}
}
