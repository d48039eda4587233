// Package e2e runs the Gherkin feature suite against a live server.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// TestContext carries HTTP state across the steps of one scenario.
type TestContext struct {
	BaseURL string
	client  *http.Client

	accessToken  string
	forwardedFor string
	saved        map[string]string

	lastStatus  int
	lastBody    []byte
	lastHeaders http.Header
}

func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		saved:   map[string]string{},
	}
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.Do(http.MethodPost, path, body, nil)
}

func (tc *TestContext) PUT(path string, body any) error {
	return tc.Do(http.MethodPut, path, body, nil)
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.Do(http.MethodGet, path, nil, headers)
}

// Do sends one request. {name} placeholders in path are replaced with
// values saved earlier in the scenario. The bearer token, when set, is sent
// unless headers override Authorization.
func (tc *TestContext) Do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(tc.Expand(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, tc.BaseURL+tc.Expand(path), reader)
	if err != nil {
		return err
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.accessToken)
	}
	if tc.forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", tc.forwardedFor)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	tc.lastStatus = resp.StatusCode
	tc.lastHeaders = resp.Header
	return nil
}

// Expand replaces {name} with saved values and {today} with the current
// UTC date.
func (tc *TestContext) Expand(s string) string {
	for k, v := range tc.saved {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return strings.ReplaceAll(s, "{today}", time.Now().UTC().Format(time.DateOnly))
}

// GetResponseField reads a dotted path such as "request.status" or
// "units.0.id" from the last JSON body.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var cur any
	if err := json.Unmarshal(tc.lastBody, &cur); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	for _, part := range strings.Split(field, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in %s", field, tc.lastBody)
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %q", part, field)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %q", field)
		}
	}
	return cur, nil
}

func (tc *TestContext) GetLastResponseStatus() int { return tc.lastStatus }
func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }
func (tc *TestContext) GetLastResponseHeader(k string) string {
	return tc.lastHeaders.Get(k)
}

func (tc *TestContext) GetAccessToken() string { return tc.accessToken }
func (tc *TestContext) SetAccessToken(token string) { tc.accessToken = token }
func (tc *TestContext) SetClientIP(ip string) { tc.forwardedFor = ip }
func (tc *TestContext) Save(name, value string) { tc.saved[name] = value }
