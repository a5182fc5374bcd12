// Package pocketbase реализует протокол коллекций поверх REST API PocketBase.
package pocketbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

const (
	fullListPageSize = 500
	defaultTimeout   = 10 * time.Second
	maxErrorBody     = 4 << 10
)

// Client — HTTP-клиент коллекций PocketBase.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	token   string
	logger  *log.Entry
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет http.Client (таймауты, транспорт).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithToken задаёт токен для заголовка Authorization.
func WithToken(token string) Option {
	return func(cl *Client) {
		cl.token = token
	}
}

// WithTimeout задаёт таймаут HTTP-запроса.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.http = &http.Client{Timeout: d, Transport: cl.http.Transport}
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// New создаёт клиент для экземпляра PocketBase по адресу baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse pocketbase url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("pocketbase url must be http(s): %q", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  log.New().WithField("component", "pocketbase"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Create(ctx context.Context, collection string, fields map[string]any) (domain.Record, error) {
	var raw map[string]any
	if err := c.do(ctx, http.MethodPost, recordsPath(collection, ""), nil, fields, &raw); err != nil {
		return domain.Record{}, err
	}
	return decodeRecord(collection, raw), nil
}

func (c *Client) GetOne(ctx context.Context, collection, id string, opts domain.GetOptions) (domain.Record, error) {
	q := url.Values{}
	if len(opts.Expand) > 0 {
		q.Set("expand", strings.Join(opts.Expand, ","))
	}

	var raw map[string]any
	if err := c.do(ctx, http.MethodGet, recordsPath(collection, id), q, nil, &raw); err != nil {
		return domain.Record{}, err
	}
	return decodeRecord(collection, raw), nil
}

// GetFullList выкачивает коллекцию страницами по 500 записей, пока не придёт неполная страница.
func (c *Client) GetFullList(ctx context.Context, collection string, opts domain.ListOptions) ([]domain.Record, error) {
	var out []domain.Record
	for page := 1; ; page++ {
		res, err := c.list(ctx, collection, page, fullListPageSize, opts, true)
		if err != nil {
			return nil, err
		}
		out = append(out, res.Items...)
		if len(res.Items) < fullListPageSize {
			break
		}
	}
	if out == nil {
		out = []domain.Record{}
	}
	return out, nil
}

func (c *Client) GetList(ctx context.Context, collection string, page, perPage int, opts domain.ListOptions) (domain.RecordPage, error) {
	return c.list(ctx, collection, page, perPage, opts, false)
}

func (c *Client) Update(ctx context.Context, collection, id string, fields map[string]any) (domain.Record, error) {
	var raw map[string]any
	if err := c.do(ctx, http.MethodPatch, recordsPath(collection, id), nil, fields, &raw); err != nil {
		return domain.Record{}, err
	}
	return decodeRecord(collection, raw), nil
}

func (c *Client) Delete(ctx context.Context, collection, id string) error {
	return c.do(ctx, http.MethodDelete, recordsPath(collection, id), nil, nil, nil)
}

// Ping обращается к /api/health.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil, nil)
}

type listResponse struct {
	Page       int              `json:"page"`
	PerPage    int              `json:"perPage"`
	TotalItems int              `json:"totalItems"`
	Items      []map[string]any `json:"items"`
}

func (c *Client) list(ctx context.Context, collection string, page, perPage int, opts domain.ListOptions, skipTotal bool) (domain.RecordPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("perPage", strconv.Itoa(perPage))
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.Filter != "" {
		q.Set("filter", opts.Filter)
	}
	if skipTotal {
		q.Set("skipTotal", "1")
	}

	var resp listResponse
	if err := c.do(ctx, http.MethodGet, recordsPath(collection, ""), q, nil, &resp); err != nil {
		return domain.RecordPage{}, err
	}

	result := domain.RecordPage{
		Page:       resp.Page,
		PerPage:    resp.PerPage,
		TotalItems: resp.TotalItems,
		Items:      make([]domain.Record, 0, len(resp.Items)),
	}
	for _, raw := range resp.Items {
		result.Items = append(result.Items, decodeRecord(collection, raw))
	}
	return result, nil
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.statusError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (c *Client) statusError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var apiErr apiError
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}

	var kind error
	switch {
	case resp.StatusCode == http.StatusNotFound:
		kind = domain.ErrNotFound
	case resp.StatusCode == http.StatusBadRequest:
		kind = domain.ErrRecordRejected
	default:
		kind = domain.ErrStoreUnavailable
	}

	if kind == domain.ErrStoreUnavailable {
		c.logger.WithFields(log.Fields{
			"op":     op,
			"status": resp.StatusCode,
		}).Warn("pocketbase request failed")
	}
	return fmt.Errorf("%s: status %d: %s: %w", op, resp.StatusCode, msg, kind)
}

func recordsPath(collection, id string) string {
	p := "/api/collections/" + collection + "/records"
	if id != "" {
		p += "/" + id
	}
	return p
}

var _ domain.RecordStore = (*Client)(nil)
