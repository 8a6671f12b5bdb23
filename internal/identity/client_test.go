package identity_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"audiovault/internal/identity"
	"audiovault/internal/logging"
	"audiovault/internal/services"
	"audiovault/internal/testsupport"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/me" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifyAcceptsWrappedAndFlatUsers(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		wantID    string
		wantQuota int64
	}{
		{"wrapped", `{"user": {"id": 42, "email": "a@example.com", "storage_quota": 2048}}`, "42", 2048},
		{"flat", `{"id": "u-7", "email": "b@example.com"}`, "u-7", 0},
		{"null quota", `{"user": {"id": "x", "email": "c@example.com", "storage_quota": null}}`, "x", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := serve(t, http.StatusOK, tc.body)
			cfg := testsupport.NewConfig(t, testsupport.WithIdentityURL(srv.URL+"/"))
			client := identity.New(cfg, logging.NewNop())

			user, err := client.Verify(context.Background(), "good-token")
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if user.ID != tc.wantID || user.StorageQuota != tc.wantQuota {
				t.Fatalf("unexpected user %+v", user)
			}
		})
	}
}

func TestVerifyClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		token  string
		want   error
	}{
		{"rejected token", http.StatusOK, `{}`, "bad-token", services.ErrUnauthorized},
		{"empty token", http.StatusOK, `{}`, " ", services.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ``, "good-token", services.ErrForbidden},
		{"server error", http.StatusBadGateway, `oops`, "good-token", services.ErrUnavailable},
		{"missing email", http.StatusOK, `{"user": {"id": 1}}`, "good-token", services.ErrUnauthorized},
		{"garbage", http.StatusOK, `not json`, "good-token", services.ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := serve(t, tc.status, tc.body)
			client := identity.NewWithDoer(srv.URL, srv.Client(), nil)
			_, err := client.Verify(context.Background(), tc.token)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestVerifyTransportErrorIsUnavailable(t *testing.T) {
	client := identity.NewWithDoer("http://identity.invalid", failingDoer{}, logging.NewNop())
	_, err := client.Verify(context.Background(), "token")
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if services.HTTPStatus(err) != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status %d", services.HTTPStatus(err))
	}
}
