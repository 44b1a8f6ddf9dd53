package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type apiClient struct {
	base string
	http *http.Client
}

func newClient(base string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.Status, e.Message)
}

func (c *apiClient) get(ctx context.Context, path string, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *apiClient) post(ctx context.Context, path string, payload map[string]any, out io.Writer) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

// doJSON sends req and pretty-prints the envelope data to out. Envelopes with
// success=false become *apiError.
func (c *apiClient) doJSON(req *http.Request, out io.Writer) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		return &apiError{Status: resp.StatusCode, Message: env.Error}
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, env.Data, "", "  "); err != nil {
		return fmt.Errorf("format response: %w", err)
	}
	pretty.WriteByte('\n')
	_, err = pretty.WriteTo(out)
	return err
}

func (c *apiClient) download(ctx context.Context, path string, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var env struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&env)
		return &apiError{Status: resp.StatusCode, Message: env.Error}
	}
	_, err = io.Copy(out, resp.Body)
	return err
}

// parseFields turns key=value pairs into a payload. Plain fields are always
// sent as strings; jsonFields carry a JSON literal as their value so numbers,
// booleans and nested objects can be submitted explicitly.
func parseFields(fields, jsonFields []string) (map[string]any, error) {
	payload := make(map[string]any, len(fields)+len(jsonFields))
	for _, f := range fields {
		key, value, err := splitField(f)
		if err != nil {
			return nil, err
		}
		payload[key] = value
	}
	for _, f := range jsonFields {
		key, raw, err := splitField(f)
		if err != nil {
			return nil, err
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("field %q is not valid JSON: %w", key, err)
		}
		payload[key] = value
	}
	return payload, nil
}

func splitField(f string) (string, string, error) {
	// Only the first '=' separates; values may contain more of them.
	key, value, ok := strings.Cut(f, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid field %q, want key=value", f)
	}
	return key, value, nil
}
