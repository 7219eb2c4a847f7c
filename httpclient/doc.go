// Package httpclient is the outbound HTTP layer used by the search,
// vector and plugin-download steps.
//
// A Client wraps net/http with per-client auth, default headers and the
// resilience primitives (retry, circuit breaker, rate limiter). Non-2xx
// responses are returned together with a classified *Error so callers can
// branch on IsNotFound or IsRetryable.
//
//	c, err := httpclient.New(httpclient.Config{
//	    BaseURL: "http://localhost:6333",
//	    Auth:    httpclient.APIKeyAuthHeader(key, "api-key"),
//	    Retry:   httpclient.DefaultRetryConfig(),
//	})
//
//	var out struct{ Status string }
//	err = httpclient.GetJSON(ctx, c, "/readyz", nil, &out)
package httpclient
