package merchant

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAuthenticate_PrimaryShape(t *testing.T) {
	var attempts int
	issuer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("grantType") != "client_credentials" {
			t.Errorf("expected camelCase grantType, got form %v", r.PostForm)
		}
		if r.PostForm.Get("clientId") != "cid" || r.PostForm.Get("clientSecret") != "sec" {
			t.Errorf("unexpected credentials %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accessToken":"tok-1","expiresIn":3600}`))
	}))
	defer issuer.Close()

	c := New(issuer.URL, "cid", "sec", testLogger())
	tok, err := c.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if tok.AccessToken != "tok-1" {
		t.Errorf("unexpected token %q", tok.AccessToken)
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt on success, got %d", attempts)
	}
}

func TestAuthenticate_FallbackShape(t *testing.T) {
	var forms []string
	issuer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("grantType") != "" {
			forms = append(forms, "camel")
			http.Error(w, `{"error":"unsupported parameter"}`, http.StatusBadRequest)
			return
		}
		forms = append(forms, "snake")
		if r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("expected snake_case grant_type, got %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accessToken":"tok-2","expiresIn":3600}`))
	}))
	defer issuer.Close()

	c := New(issuer.URL, "cid", "sec", testLogger())
	tok, err := c.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if tok.AccessToken != "tok-2" {
		t.Errorf("unexpected token %q", tok.AccessToken)
	}
	if len(forms) != 2 || forms[0] != "camel" || forms[1] != "snake" {
		t.Errorf("expected camel then snake attempts, got %v", forms)
	}
}

func TestAuthenticate_BothShapesRejected(t *testing.T) {
	var attempts int
	issuer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer issuer.Close()

	c := New(issuer.URL, "cid", "sec", testLogger())
	if _, err := c.Authenticate(context.Background()); err == nil {
		t.Fatal("expected failure when both shapes rejected")
	}
	if attempts != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", attempts)
	}
}

func TestAuthenticate_CachesToken(t *testing.T) {
	var attempts int
	issuer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accessToken":"tok-3","expiresIn":3600}`))
	}))
	defer issuer.Close()

	c := New(issuer.URL, "cid", "sec", testLogger())
	for i := 0; i < 3; i++ {
		if _, err := c.Authenticate(context.Background()); err != nil {
			t.Fatalf("Authenticate: %v", err)
		}
	}
	if attempts != 1 {
		t.Errorf("expected token reuse, got %d issuer calls", attempts)
	}

	c.Invalidate()
	if _, err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate after Invalidate: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected re-authentication after Invalidate, got %d calls", attempts)
	}
}

func TestFetchSalesMetrics_RequiresAuth(t *testing.T) {
	issuer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer issuer.Close()

	c := New(issuer.URL, "cid", "sec", testLogger())
	_, err := c.FetchSalesMetrics(context.Background(), "m-1", time.Now().Add(-24*time.Hour), time.Now())
	if err == nil {
		t.Fatal("expected metrics fetch to fail when auth fails")
	}
}
