package services_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"audiovault/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrIO, "filestore", "save", "write failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrIO) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"filestore", "save", "write failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrIO) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		marker error
		want   int
	}{
		{services.ErrValidation, http.StatusBadRequest},
		{services.ErrQuotaExceeded, http.StatusRequestEntityTooLarge},
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrUnauthorized, http.StatusUnauthorized},
		{services.ErrForbidden, http.StatusForbidden},
		{services.ErrUnavailable, http.StatusServiceUnavailable},
		{services.ErrIO, http.StatusInternalServerError},
		{services.ErrExtraction, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		err := services.Wrap(tc.marker, "api", "op", "msg", nil)
		if got := services.HTTPStatus(err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.marker, tc.want, got)
		}
	}
	if services.HTTPStatus(nil) != http.StatusOK {
		t.Fatal("expected 200 for nil error")
	}
}
