// Package active24 is a minimal client for the parts of the Active24
// REST API needed to solve DNS-01 challenges: zone discovery and TXT
// record creation/removal. It is not a general-purpose DNS API client.
package active24

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"active24dns/internal/dnsname"
)

const (
	requestTimeout = 10 * time.Second

	// serviceNameDomain marks account services that represent DNS zones
	serviceNameDomain = "domain"
)

var (
	// ErrZoneNotFound is returned when no zone in the account covers the requested name
	ErrZoneNotFound = errors.New("no matching DNS zone")

	// ErrRecordNotFound is returned when a DNS record is not found
	ErrRecordNotFound = errors.New("DNS record not found")
)

// APIError represents a non-success response from the Active24 API
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("active24 API error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("active24 API error: status=%d, body=%s", e.StatusCode, e.Body)
}

// Client talks to the Active24 REST API. Every request is signed with
// HMAC-SHA1 over "METHOD path timestamp" using the account secret; the
// signature is sent as the basic-auth password next to the API key.
type Client struct {
	apiKey  string
	secret  string
	baseURL string
	client  *http.Client
	logger  *logrus.Entry

	// now is a clock hook for request signing, overridable in tests
	now func() time.Time
}

// NewClient creates a new Active24 API client
func NewClient(apiKey, secret, baseURL string, timeout time.Duration, logger *logrus.Entry) *Client {
	if timeout <= 0 {
		timeout = requestTimeout
	}
	return &Client{
		apiKey:  apiKey,
		secret:  secret,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Service represents an entry from the account service list. Services
// with ServiceName == "domain" are DNS zones.
type Service struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ServiceName string `json:"serviceName"`
}

// Record represents a DNS record in a zone. Names are relative to the
// zone ("@" for the apex).
type Record struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
}

type serviceListResponse struct {
	Items []Service `json:"items"`
}

type recordListResponse struct {
	Data []Record `json:"data"`
}

// ListServices returns all services of the authenticated account
func (c *Client) ListServices(ctx context.Context) ([]Service, error) {
	status, body, err := c.doRequest(ctx, http.MethodGet, "/v1/user/self/service", nil, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &APIError{StatusCode: status, Body: string(body)}
	}

	var resp serviceListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse service list: %w", err)
	}

	return resp.Items, nil
}

// FindService locates the DNS zone responsible for fqdn. Among the
// account's domain services whose zone contains fqdn, the one with the
// longest name wins, so "sub.example.com" is preferred over
// "example.com" when both are present.
func (c *Client) FindService(ctx context.Context, fqdn string) (*Service, error) {
	services, err := c.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	var best *Service
	for i := range services {
		svc := &services[i]
		if svc.ServiceName != serviceNameDomain {
			continue
		}
		if !dnsname.IsSubdomain(fqdn, svc.Name) {
			continue
		}
		if best == nil || len(svc.Name) > len(best.Name) {
			best = svc
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w for %s", ErrZoneNotFound, fqdn)
	}

	c.logger.WithFields(logrus.Fields{
		"fqdn":    fqdn,
		"zone":    best.Name,
		"service": best.ID,
	}).Debug("Matched DNS zone")

	return best, nil
}

// CreateTXTRecord creates a TXT record in the given zone. The name must
// be relative to the zone. The API signals success with HTTP 204.
func (c *Client) CreateTXTRecord(ctx context.Context, serviceID int64, name, content string, ttl int) error {
	c.logger.WithFields(logrus.Fields{
		"service": serviceID,
		"name":    name,
	}).Debug("Creating TXT record")

	payload := map[string]interface{}{
		"type":    "TXT",
		"name":    name,
		"content": content,
		"ttl":     ttl,
	}

	path := fmt.Sprintf("/v2/service/%d/dns/record", serviceID)
	status, body, err := c.doRequest(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return &APIError{StatusCode: status, Body: string(body)}
	}

	c.logger.Debug("Successfully created TXT record")
	return nil
}

// FindTXTRecord finds a TXT record by relative name and content.
// Matching on both keeps records created by concurrent challenges for
// the same name apart.
func (c *Client) FindTXTRecord(ctx context.Context, serviceID int64, name, content string) (*Record, error) {
	query := url.Values{}
	query.Set("name", name)
	query.Set("type", "TXT")

	path := fmt.Sprintf("/v2/service/%d/dns/record", serviceID)
	status, body, err := c.doRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &APIError{StatusCode: status, Body: string(body)}
	}

	var resp recordListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse record list: %w", err)
	}

	for i := range resp.Data {
		record := &resp.Data[i]
		if record.Type == "TXT" && record.Name == name && record.Content == content {
			return record, nil
		}
	}

	return nil, fmt.Errorf("%w: name=%s", ErrRecordNotFound, name)
}

// DeleteRecord deletes a DNS record by ID. A 404 from the API maps to
// ErrRecordNotFound so callers can treat an already-gone record as done.
func (c *Client) DeleteRecord(ctx context.Context, serviceID, recordID int64) error {
	path := fmt.Sprintf("/v2/service/%d/dns/record/%d", serviceID, recordID)
	status, body, err := c.doRequest(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		return err
	}

	switch status {
	case http.StatusNoContent:
		c.logger.WithField("record", recordID).Debug("Successfully deleted TXT record")
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: id=%d", ErrRecordNotFound, recordID)
	default:
		return &APIError{StatusCode: status, Body: string(body)}
	}
}

// doRequest builds, signs, and sends a request, returning the status
// code and the full response body
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload interface{}) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}

	timestamp := c.now().Unix()
	req.SetBasicAuth(c.apiKey, sign(c.secret, method, path, timestamp))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Date", time.Unix(timestamp, 0).UTC().Format(time.RFC3339))

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, body, nil
}

// sign computes the request signature: hex(hmac_sha1(secret, "METHOD path timestamp")).
// The path is signed without the query string.
func sign(secret, method, path string, timestamp int64) string {
	mac := hmac.New(sha1.New, []byte(secret))
	fmt.Fprintf(mac, "%s %s %d", method, path, timestamp)
	return hex.EncodeToString(mac.Sum(nil))
}
