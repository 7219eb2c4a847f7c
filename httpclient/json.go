package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// DecodeJSON unmarshals the response body into v. An empty body leaves v
// untouched.
func DecodeJSON(resp *Response, v any) error {
	if resp == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("httpclient: decode response: %w", err)
	}
	return nil
}

// GetJSON sends a GET with the given query and decodes the JSON reply into out.
func GetJSON(ctx context.Context, c *Client, path string, query map[string]string, out any) error {
	return doJSON(ctx, c, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// PostJSON sends body as JSON and decodes the reply into out (nil skips decoding).
func PostJSON(ctx context.Context, c *Client, path string, body, out any) error {
	return doJSON(ctx, c, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// PutJSON is PostJSON with the PUT method.
func PutJSON(ctx context.Context, c *Client, path string, body, out any) error {
	return doJSON(ctx, c, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

func doJSON(ctx context.Context, c *Client, req Request, out any) error {
	if req.Headers == nil {
		req.Headers = map[string]string{"Accept": "application/json"}
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return DecodeJSON(resp, out)
}
