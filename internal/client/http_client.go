// Package client talks to the upstream identity, negotiation and contract
// services over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/upcast-project/upconsent/pkg/utils"
)

// ErrNotConfigured is returned when the upstream base URL is empty
var ErrNotConfigured = errors.New("upstream service is not configured")

// CallObserver records the outcome of upstream calls
type CallObserver interface {
	ObserveCall(service, outcome string, duration time.Duration)
}

// Options configures an upstream client
type Options struct {
	BaseURL  string
	Timeout  time.Duration
	Logger   *logrus.Logger
	Observer CallObserver
}

// httpClient holds the transport shared by the typed clients
type httpClient struct {
	service    string
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
	observer   CallObserver
}

func newHTTPClient(service string, opts Options) *httpClient {
	timeout := 30 * time.Second
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	return &httpClient{
		service: service,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger:   logger,
		observer: opts.Observer,
	}
}

// upstreamFailure describes an unsuccessful call. StatusCode is zero when no
// response was received.
type upstreamFailure struct {
	StatusCode int
	Message    string
	Err        error
}

func (f *upstreamFailure) Error() string {
	if f.StatusCode == 0 {
		return f.Message
	}
	return fmt.Sprintf("status %d: %s", f.StatusCode, f.Message)
}

func (f *upstreamFailure) Unwrap() error {
	return f.Err
}

// HTTPStatus returns the upstream status, or 500 when there was none
func (f *upstreamFailure) HTTPStatus() int {
	if f.StatusCode >= 400 && f.StatusCode <= 599 {
		return f.StatusCode
	}
	return http.StatusInternalServerError
}

// send performs the request and returns the response of a 2xx call. The
// caller must close the body. Other outcomes return *upstreamFailure.
func (c *httpClient) send(ctx context.Context, method, path string, body interface{}, header http.Header) (*http.Response, error) {
	if c.baseURL == "" {
		c.logger.WithField("service", c.service).Debug("Upstream service not configured, skipping call")
		return nil, &upstreamFailure{Message: c.service + " service is not configured", Err: ErrNotConfigured}
	}

	url := c.baseURL + path

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			c.logger.WithError(err).Error("Failed to marshal upstream request")
			return nil, &upstreamFailure{Message: "failed to marshal request", Err: err}
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		c.logger.WithError(err).Error("Failed to create upstream request")
		return nil, &upstreamFailure{Message: "failed to create request", Err: err}
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if correlationID := utils.CorrelationIDFromContext(ctx); correlationID != "" {
		req.Header.Set("X-Correlation-ID", correlationID)
	}

	c.logger.WithFields(logrus.Fields{
		"service": c.service,
		"method":  method,
		"url":     url,
	}).Debug("Calling upstream service")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		c.observe("error", duration)
		c.logger.WithError(err).WithFields(logrus.Fields{
			"service":  c.service,
			"duration": duration,
		}).Error("Upstream service call failed")
		return nil, &upstreamFailure{Message: c.service + " service call failed", Err: err}
	}

	c.logger.WithFields(logrus.Fields{
		"service":    c.service,
		"statusCode": resp.StatusCode,
		"duration":   duration,
		"url":        url,
	}).Debug("Upstream service response received")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		c.observe("failure", duration)
		c.logger.WithFields(logrus.Fields{
			"service":    c.service,
			"statusCode": resp.StatusCode,
			"response":   string(respBody),
		}).Warn("Upstream service returned non-success status")
		return nil, &upstreamFailure{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, respBody)}
	}

	c.observe("success", duration)
	return resp, nil
}

// doJSON performs the request and decodes a 2xx JSON body into out
func (c *httpClient) doJSON(ctx context.Context, method, path string, body interface{}, header http.Header, out interface{}) error {
	resp, err := c.send(ctx, method, path, body, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.WithError(err).Error("Failed to read upstream response")
		return &upstreamFailure{StatusCode: http.StatusBadGateway, Message: "failed to read response", Err: err}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.WithError(err).Error("Failed to unmarshal upstream response")
		return &upstreamFailure{StatusCode: http.StatusBadGateway, Message: "invalid response from " + c.service + " service", Err: err}
	}
	return nil
}

func (c *httpClient) observe(outcome string, duration time.Duration) {
	if c.observer != nil {
		c.observer.ObserveCall(c.service, outcome, duration)
	}
}

// Close closes idle connections
func (c *httpClient) Close() {
	c.httpClient.CloseIdleConnections()
}

// errorMessage extracts a readable message from an upstream error body
func errorMessage(status int, body []byte) string {
	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, key := range []string{"error", "message", "detail", "errorMessage"} {
			if msg, ok := parsed[key].(string); ok && msg != "" {
				return msg
			}
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 512 {
		return text
	}
	return http.StatusText(status)
}

func bearer(token string) http.Header {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return header
}

// stringField returns the first non-empty string or number value among keys
func stringField(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
