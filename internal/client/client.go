// Package client talks to the menu batches HTTP API. It implements the
// store interfaces of the editor and review packages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fdg312/menu-batches/internal/auth"
	"github.com/fdg312/menu-batches/internal/batches"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap maps 404 to ErrNotFound and 409 to ErrConflict.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	}
	return nil
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client. A nil httpClient gets a 30s timeout.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// WithToken returns a copy that sends another bearer token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// DevToken asks POST /v1/auth/dev for a token.
func (c *Client) DevToken(ctx context.Context, userID, role string) (*auth.DevAuthResponse, error) {
	var resp auth.DevAuthResponse
	body := auth.DevAuthRequest{UserID: userID, Role: role}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/dev", nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CreateBatch(ctx context.Context, req *batches.BatchRequest) (*batches.BatchDTO, error) {
	var details batches.BatchDetails
	if err := c.do(ctx, http.MethodPost, "/v1/batches", nil, req, &details); err != nil {
		return nil, err
	}
	return &details.Batch, nil
}

func (c *Client) UpdateBatch(ctx context.Context, batchID int64, req *batches.BatchRequest) (*batches.BatchDTO, error) {
	var details batches.BatchDetails
	if err := c.do(ctx, http.MethodPut, batchPath(batchID, ""), nil, req, &details); err != nil {
		return nil, err
	}
	return &details.Batch, nil
}

func (c *Client) SubmitBatch(ctx context.Context, batchID int64) error {
	return c.do(ctx, http.MethodPatch, batchPath(batchID, "/submit"), nil, nil, nil)
}

func (c *Client) FetchBatchItems(ctx context.Context, batchID int64) (*batches.BatchDetails, error) {
	var details batches.BatchDetails
	if err := c.do(ctx, http.MethodGet, batchPath(batchID, "/items"), nil, nil, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

func (c *Client) FetchRejectionReason(ctx context.Context, batchID int64) (*batches.RejectionReasonResponse, error) {
	var resp batches.RejectionReasonResponse
	if err := c.do(ctx, http.MethodGet, batchPath(batchID, "/rejection-reason"), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ApproveBatch(ctx context.Context, req *batches.ApproveRequest) error {
	return c.do(ctx, http.MethodPost, "/v1/batches/approve", nil, req, nil)
}

func (c *Client) RejectBatch(ctx context.Context, batchID int64, reason string) error {
	return c.do(ctx, http.MethodPost, batchPath(batchID, "/reject"), nil, batches.RejectRequest{Reason: reason}, nil)
}

// SendEvent posts an operator fulfillment event.
func (c *Client) SendEvent(ctx context.Context, batchID int64, event batches.Event) (*batches.BatchDTO, error) {
	var batch batches.BatchDTO
	if err := c.do(ctx, http.MethodPost, batchPath(batchID, "/events"), nil, batches.EventRequest{Event: event}, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// DeleteContent removes stored items by day and/or meal type.
func (c *Client) DeleteContent(ctx context.Context, batchID int64, day int, mealType batches.MealType) (int, error) {
	q := url.Values{}
	if day > 0 {
		q.Set("day", strconv.Itoa(day))
	}
	if mealType != "" {
		q.Set("meal_type", string(mealType))
	}
	var resp batches.DeleteContentResponse
	if err := c.do(ctx, http.MethodDelete, batchPath(batchID, "/content"), q, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// MonthlyMenu returns nil without error when the consumer has no menu for
// the month yet.
func (c *Client) MonthlyMenu(ctx context.Context, consumerID int64, year, month int) (*batches.MonthlyMenuDTO, error) {
	q := url.Values{}
	q.Set("year", strconv.Itoa(year))
	q.Set("month", strconv.Itoa(month))

	var resp batches.GetMonthlyMenuResponse
	path := "/v1/menus/" + strconv.FormatInt(consumerID, 10)
	if err := c.do(ctx, http.MethodGet, path, q, nil, &resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return resp.Menu, nil
}

// ListParams filters GET /v1/batches. Zero values are omitted.
type ListParams struct {
	ConsumerID int64
	Status     batches.Status
	Limit      int
	Offset     int
}

func (p ListParams) values() url.Values {
	q := url.Values{}
	if p.ConsumerID > 0 {
		q.Set("consumer_id", strconv.FormatInt(p.ConsumerID, 10))
	}
	if p.Status != "" {
		q.Set("status", string(p.Status))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
	return q
}

func (c *Client) ListBatches(ctx context.Context, p ListParams) (*batches.ListBatchesResponse, error) {
	var resp batches.ListBatchesResponse
	if err := c.do(ctx, http.MethodGet, "/v1/batches", p.values(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) MyBatches(ctx context.Context) (*batches.MyBatchesResponse, error) {
	var resp batches.MyBatchesResponse
	if err := c.do(ctx, http.MethodGet, "/v1/me/batches", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Stats(ctx context.Context) (*batches.StatsResponse, error) {
	var resp batches.StatsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/batches/stats", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Calendar(ctx context.Context, batchID int64) (*batches.Calendar, error) {
	var cal batches.Calendar
	if err := c.do(ctx, http.MethodGet, batchPath(batchID, "/calendar"), nil, nil, &cal); err != nil {
		return nil, err
	}
	return &cal, nil
}

// Export is either a presigned link or the file itself.
type Export struct {
	URL         string
	ExpiresAt   time.Time
	ContentType string
	Filename    string
	Data        []byte
}

func (c *Client) Export(ctx context.Context, batchID int64, format string) (*Export, error) {
	q := url.Values{}
	q.Set("format", format)

	resp, err := c.send(ctx, http.MethodGet, batchPath(batchID, "/export"), q, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var link batches.ExportResponse
		if err := json.NewDecoder(resp.Body).Decode(&link); err != nil {
			return nil, fmt.Errorf("failed to decode export link: %w", err)
		}
		return &Export{URL: link.URL, ExpiresAt: link.ExpiresAt}, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}
	return &Export{
		ContentType: contentType,
		Filename:    filenameFrom(resp.Header.Get("Content-Disposition")),
		Data:        data,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// send returns the response only for 2xx statuses.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, decodeError(resp)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var envelope batches.ErrorResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else if text := strings.TrimSpace(string(raw)); text != "" {
		apiErr.Message = text
	}
	return apiErr
}

func batchPath(batchID int64, suffix string) string {
	return "/v1/batches/" + strconv.FormatInt(batchID, 10) + suffix
}

func filenameFrom(disposition string) string {
	const marker = "filename="
	i := strings.Index(disposition, marker)
	if i < 0 {
		return ""
	}
	return strings.Trim(disposition[i+len(marker):], `"; `)
}
