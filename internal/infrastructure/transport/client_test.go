package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"TasteClient/internal/domain"
	"TasteClient/internal/ports"
)

type fakeCredentials struct {
	mu      sync.Mutex
	token   domain.Credential
	cleared int
}

func (f *fakeCredentials) Current() (domain.Credential, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.token != ""
}

func (f *fakeCredentials) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.cleared++
	return nil
}

func newTestClient(t *testing.T, srv *httptest.Server, creds ports.CredentialStore, timeout time.Duration) *Client {
	t.Helper()
	c, err := New(Options{BaseURL: srv.URL, Timeout: timeout}, creds, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return c
}

func TestDoAttachesBearerWhenTokenPresent(t *testing.T) {
	t.Parallel()

	var gotAuth, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &fakeCredentials{token: "abc"}, 0)
	resp, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/health"})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}

	if gotAuth != "Bearer abc" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if gotRequestID == "" || gotRequestID != resp.RequestID {
		t.Fatalf("request id mismatch: header %q response %q", gotRequestID, resp.RequestID)
	}

	var body struct{ Status string }
	if err := resp.DecodeJSON(&body); err != nil {
		t.Fatalf("DecodeJSON returned error: %v", err)
	}
	if body.Status != "healthy" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestDoOmitsAuthorizationWithoutToken(t *testing.T) {
	t.Parallel()

	var present bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header["Authorization"]
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	for _, creds := range []ports.CredentialStore{nil, &fakeCredentials{}} {
		c := newTestClient(t, srv, creds, 0)
		if _, err := c.Do(context.Background(), Request{Path: "/health"}); err != nil {
			t.Fatalf("Do returned error: %v", err)
		}
		if present {
			t.Fatalf("authorization header must be absent")
		}
	}
}

func TestDoUnauthorizedClearsAndNotifies(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	}))
	defer srv.Close()

	creds := &fakeCredentials{token: "stale"}
	c := newTestClient(t, srv, creds, 0)

	var events []domain.AuthExpired
	c.OnAuthExpired(ports.AuthExpiredFunc(func(e domain.AuthExpired) {
		// the credential is already gone when listeners run
		if _, ok := creds.Current(); ok {
			t.Errorf("listener ran before credential was cleared")
		}
		events = append(events, e)
	}))

	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/v1/aesthetic/score"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if domain.KindOf(err) != domain.KindUnauthorized {
		t.Fatalf("unexpected kind %s", domain.KindOf(err))
	}
	if creds.cleared != 1 {
		t.Fatalf("expected one clear, got %d", creds.cleared)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].LoginPath != DefaultLoginPath || events[0].Path != "/api/v1/aesthetic/score" {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

func TestDoHTTPErrorCarriesMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
		want        string
	}{
		{name: "json detail", contentType: "application/json", body: `{"detail":"Invalid image format"}`, status: 400, want: "Invalid image format"},
		{name: "validation list", contentType: "application/json", body: `{"detail":[{"msg":"field required"},{"msg":"bad value"}]}`, status: 422, want: "field required; bad value"},
		{name: "html page", contentType: "text/html", body: `<html><head><title>502 Bad Gateway</title></head><body><h1>nginx</h1></body></html>`, status: 502, want: "502 Bad Gateway"},
		{name: "plain text", contentType: "text/plain", body: "  upstream\n  overloaded ", status: 503, want: "upstream overloaded"},
		{name: "long multibyte text", contentType: "text/plain", body: strings.Repeat("a", 1023) + "é" + "tail", status: 500, want: strings.Repeat("a", 1023) + "…"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			creds := &fakeCredentials{token: "keep"}
			c := newTestClient(t, srv, creds, 0)
			_, err := c.Do(context.Background(), Request{Path: "/x"})

			var te *Error
			if !errors.As(err, &te) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if te.Kind != domain.KindHTTP || te.Status != tt.status {
				t.Fatalf("unexpected error: %+v", te)
			}
			if te.Message != tt.want {
				t.Fatalf("expected message %q, got %q", tt.want, te.Message)
			}
			if string(te.Body) != tt.body {
				t.Fatalf("body not preserved: %q", te.Body)
			}
			if creds.cleared != 0 {
				t.Fatalf("non-401 must not clear the credential")
			}
		})
	}
}

func TestDoTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv, nil, 50*time.Millisecond)
	_, err := c.Do(context.Background(), Request{Path: "/slow"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestDoNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: addr}, nil, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, err = c.Do(context.Background(), Request{Path: "/health"})
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestDoCanceledIsNotNetwork(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	creds := &fakeCredentials{token: "keep"}
	c := newTestClient(t, srv, creds, 0)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := c.Do(ctx, Request{Path: "/slow"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrNetwork) || errors.Is(err, ErrTimeout) {
		t.Fatalf("cancellation must not be reported as %s", domain.KindOf(err))
	}
	if domain.KindOf(err) != domain.KindUnknown {
		t.Fatalf("unexpected kind %s", domain.KindOf(err))
	}
	if !strings.HasSuffix(err.Error(), ": canceled") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if creds.cleared != 0 {
		t.Fatalf("cancellation must not clear the credential")
	}
}

func TestNewDefaultsAndValidation(t *testing.T) {
	t.Parallel()

	c, err := New(Options{}, nil, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if c.BaseURL() != DefaultBaseURL {
		t.Fatalf("unexpected base url %s", c.BaseURL())
	}
	if c.Timeout() != DefaultTimeout {
		t.Fatalf("unexpected timeout %s", c.Timeout())
	}

	if _, err := New(Options{BaseURL: "ftp://example.com"}, nil, nil); err == nil {
		t.Fatalf("expected scheme error")
	}
}

func TestResolveJoinsPathAndQuery(t *testing.T) {
	t.Parallel()

	c, err := New(Options{BaseURL: "http://example.com/root/"}, nil, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	got := c.resolve("/api/v1/trends/predict", map[string][]string{"category": {"street wear"}})
	if !strings.HasPrefix(got, "http://example.com/root/api/v1/trends/predict?") {
		t.Fatalf("unexpected url %s", got)
	}
	if !strings.HasSuffix(got, "category=street+wear") {
		t.Fatalf("query not escaped: %s", got)
	}
}
