package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/kbukum/vaultflow/errors"
	"github.com/kbukum/vaultflow/resilience"
)

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestClient_Do_GET(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/search" {
			t.Errorf("path = %s, want /search", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "golang" {
			t.Errorf("q = %q, want golang", got)
		}
		if got := r.Header.Get("X-Client"); got != "vaultflow" {
			t.Errorf("X-Client = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	}))
	defer srv.Close()

	c := newTestClient(t, Config{BaseURL: srv.URL + "/", Headers: map[string]string{"X-Client": "vaultflow"}})
	resp, err := c.Do(context.Background(), Request{Path: "/search", Query: map[string]string{"q": "golang"}})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !resp.IsSuccess() || resp.IsError() {
		t.Errorf("status %d should be success", resp.StatusCode)
	}
	if resp.Headers["Content-Type"] != "application/json" {
		t.Errorf("Content-Type = %q", resp.Headers["Content-Type"])
	}
}

func TestClient_Do_Bodies(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		wantType string
		wantBody string
	}{
		{"json", map[string]int{"limit": 3}, "application/json", `{"limit":3}`},
		{"string", "hello", "text/plain", "hello"},
		{"bytes", []byte("raw"), "", "raw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Content-Type"); got != tt.wantType {
					t.Errorf("Content-Type = %q, want %q", got, tt.wantType)
				}
				data, _ := io.ReadAll(r.Body)
				if string(data) != tt.wantBody {
					t.Errorf("body = %q, want %q", data, tt.wantBody)
				}
			}))
			defer srv.Close()

			c := newTestClient(t, Config{BaseURL: srv.URL})
			if _, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/", Body: tt.body}); err != nil {
				t.Fatalf("Do: %v", err)
			}
		})
	}
}

func TestClient_Do_Auth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("api-key"); got != "override" {
			t.Errorf("api-key = %q, want override", got)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, Config{BaseURL: srv.URL, Auth: APIKeyAuthHeader("default", "api-key")})
	_, err := c.Do(context.Background(), Request{Path: "/", Auth: APIKeyAuthHeader("override", "api-key")})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
}

func TestClient_Do_ErrorClassification(t *testing.T) {
	tests := []struct {
		status  int
		code    ErrorCode
		checker func(error) bool
	}{
		{401, ErrCodeAuth, IsAuth},
		{403, ErrCodeAuth, IsAuth},
		{404, ErrCodeNotFound, IsNotFound},
		{429, ErrCodeRateLimit, IsRetryable},
		{503, ErrCodeServer, IsRetryable},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("HTTP_%d", tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"status":"error"}`))
			}))
			defer srv.Close()

			c := newTestClient(t, Config{BaseURL: srv.URL})
			resp, err := c.Do(context.Background(), Request{Path: "/"})
			if err == nil || !tt.checker(err) {
				t.Fatalf("err = %v, want classified %s", err, tt.code)
			}
			var ce *Error
			if !errors.As(err, &ce) || ce.Code != tt.code {
				t.Errorf("code = %v, want %v", ce, tt.code)
			}
			if resp == nil || resp.StatusCode != tt.status {
				t.Errorf("response should be returned with status %d", tt.status)
			}
		})
	}
}

func TestClient_Do_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := newTestClient(t, Config{BaseURL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Do(ctx, Request{Path: "/"})
	if !IsTimeout(err) {
		t.Fatalf("err = %v, want timeout", err)
	}
}

func TestClient_Do_AbsoluteURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/plugin.zip" {
			t.Errorf("path = %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, Config{BaseURL: "http://unused.invalid"})
	if _, err := c.Do(context.Background(), Request{Path: srv.URL + "/plugin.zip"}); err != nil {
		t.Fatalf("Do: %v", err)
	}
}

func TestClient_Do_Retry(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	retry := DefaultRetryConfig()
	retry.InitialBackoff = 5 * time.Millisecond
	retry.Jitter = 0

	c := newTestClient(t, Config{BaseURL: srv.URL, Retry: retry})
	resp, err := c.Do(context.Background(), Request{Path: "/"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestClient_Do_RetrySkipsClientErrors(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	retry := DefaultRetryConfig()
	retry.InitialBackoff = time.Millisecond
	c := newTestClient(t, Config{BaseURL: srv.URL, Retry: retry})
	if _, err := c.Do(context.Background(), Request{Path: "/"}); err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestClient_Do_CircuitBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cb := DefaultCircuitBreakerConfig("qdrant")
	cb.MaxFailures = 2
	c := newTestClient(t, Config{BaseURL: srv.URL, CircuitBreaker: cb})

	ctx := context.Background()
	for range 2 {
		_, _ = c.Do(ctx, Request{Path: "/"})
	}
	if _, err := c.Do(ctx, Request{Path: "/"}); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestClient_Do_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := newTestClient(t, Config{BaseURL: srv.URL, RateLimiter: RateLimit("search", 20)})
	start := time.Now()
	for range 3 {
		if _, err := c.Do(context.Background(), Request{Path: "/"}); err != nil {
			t.Fatalf("Do: %v", err)
		}
	}
	// burst 1 at 20/s: the 2nd and 3rd calls wait ~50ms each
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("elapsed = %v, want rate limiting", elapsed)
	}
}

func TestJSONHelpers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"title":"qdrant"}`))
		case http.MethodPut:
			var in map[string]any
			_ = json.NewDecoder(r.Body).Decode(&in)
			_ = json.NewEncoder(w).Encode(map[string]any{"echo": in["name"]})
		case http.MethodPost:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, Config{BaseURL: srv.URL})
	ctx := context.Background()

	var info struct{ Title string }
	if err := GetJSON(ctx, c, "/", nil, &info); err != nil || info.Title != "qdrant" {
		t.Fatalf("GetJSON = %+v, %v", info, err)
	}
	var echo struct{ Echo string }
	if err := PutJSON(ctx, c, "/", map[string]string{"name": "notes"}, &echo); err != nil || echo.Echo != "notes" {
		t.Fatalf("PutJSON = %+v, %v", echo, err)
	}
	var empty struct{ Echo string }
	if err := PostJSON(ctx, c, "/", map[string]string{}, &empty); err != nil || empty.Echo != "" {
		t.Fatalf("PostJSON = %+v, %v", empty, err)
	}
}

func TestDecodeJSON_Invalid(t *testing.T) {
	var v map[string]any
	if err := DecodeJSON(&Response{Body: []byte("<html>")}, &v); err == nil {
		t.Fatal("expected decode error")
	}
	if err := DecodeJSON(nil, &v); err != nil {
		t.Fatalf("nil response: %v", err)
	}
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.ErrorCode
	}{
		{"timeout", NewTimeoutError(context.DeadlineExceeded), apperrors.ErrCodeTimeout},
		{"not found", ClassifyStatusCode(404, nil), apperrors.ErrCodeNotFound},
		{"auth", ClassifyStatusCode(401, nil), apperrors.ErrCodeUnauthorized},
		{"server", ClassifyStatusCode(502, nil), apperrors.ErrCodeExternalService},
		{"connection", NewConnectionError(errors.New("refused")), apperrors.ErrCodeExternalService},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToAppError("searxng", tt.err)
			if code := apperrors.CodeOf(got); code != tt.want {
				t.Errorf("code = %s, want %s", code, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("cause should be preserved")
			}
		})
	}
	if ToAppError("x", nil) != nil {
		t.Error("nil in, nil out")
	}
}
