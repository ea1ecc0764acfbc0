// Package remote talks to a json-server style track backend over HTTP.
package remote

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

	"github.com/okian/asyncrace/internal/domain/model"
	"github.com/okian/asyncrace/pkg/logger"
)

const (
	defaultTimeout   = 30 * time.Second
	totalCountHeader = "X-Total-Count"
	maxErrorBody     = 512
)

// Client implements the engine controller and both collections against a
// backend base URL.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	logger  logger.Logger
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	c := &Client{base: u, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("remote")
	}
	return c, nil
}

// ListVehicles fetches one garage page.
func (c *Client) ListVehicles(ctx context.Context, q model.Query) (model.Page[model.Vehicle], error) {
	var items []model.Vehicle
	total, err := c.list(ctx, "/garage", q, &items)
	if err != nil {
		return model.Page[model.Vehicle]{}, err
	}
	return model.Page[model.Vehicle]{Items: items, Total: total}, nil
}

// GetVehicle fetches one vehicle.
func (c *Client) GetVehicle(ctx context.Context, id int) (model.Vehicle, error) {
	var v model.Vehicle
	err := c.do(ctx, http.MethodGet, "/garage/"+strconv.Itoa(id), nil, nil, &v)
	return v, err
}

// CreateVehicle adds a vehicle.
func (c *Client) CreateVehicle(ctx context.Context, in model.VehicleInput) (model.Vehicle, error) {
	in, err := in.Normalize()
	if err != nil {
		return model.Vehicle{}, err
	}
	var v model.Vehicle
	err = c.do(ctx, http.MethodPost, "/garage", nil, in, &v)
	return v, err
}

// UpdateVehicle replaces name and color.
func (c *Client) UpdateVehicle(ctx context.Context, id int, in model.VehicleInput) (model.Vehicle, error) {
	in, err := in.Normalize()
	if err != nil {
		return model.Vehicle{}, err
	}
	var v model.Vehicle
	err = c.do(ctx, http.MethodPut, "/garage/"+strconv.Itoa(id), nil, in, &v)
	return v, err
}

// DeleteVehicle removes a vehicle.
func (c *Client) DeleteVehicle(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/garage/"+strconv.Itoa(id), nil, nil, nil)
}

// ListWinners fetches one winners page.
func (c *Client) ListWinners(ctx context.Context, q model.Query) (model.Page[model.WinnerRecord], error) {
	var items []model.WinnerRecord
	total, err := c.list(ctx, "/winners", q, &items)
	if err != nil {
		return model.Page[model.WinnerRecord]{}, err
	}
	return model.Page[model.WinnerRecord]{Items: items, Total: total}, nil
}

// GetWinner fetches one record.
func (c *Client) GetWinner(ctx context.Context, id int) (model.WinnerRecord, error) {
	var rec model.WinnerRecord
	err := c.do(ctx, http.MethodGet, "/winners/"+strconv.Itoa(id), nil, nil, &rec)
	return rec, err
}

// CreateWinner adds a record.
func (c *Client) CreateWinner(ctx context.Context, rec model.WinnerRecord) (model.WinnerRecord, error) {
	var out model.WinnerRecord
	err := c.do(ctx, http.MethodPost, "/winners", nil, rec, &out)
	return out, err
}

// UpdateWinner replaces wins and time of a record.
func (c *Client) UpdateWinner(ctx context.Context, rec model.WinnerRecord) (model.WinnerRecord, error) {
	body := struct {
		Wins int     `json:"wins"`
		Time float64 `json:"time"`
	}{rec.Wins, rec.Time}
	var out model.WinnerRecord
	err := c.do(ctx, http.MethodPut, "/winners/"+strconv.Itoa(rec.ID), nil, body, &out)
	return out, err
}

// DeleteWinner removes a record.
func (c *Client) DeleteWinner(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/winners/"+strconv.Itoa(id), nil, nil, nil)
}

// Start starts an engine.
func (c *Client) Start(ctx context.Context, id int) (model.EngineParams, error) {
	var p model.EngineParams
	err := c.do(ctx, http.MethodPatch, "/engine", engineQuery(id, "started"), nil, &p)
	return p, err
}

// Drive drives a started engine. A 500 response is a breakdown and maps to
// model.ErrEngineBroken.
func (c *Client) Drive(ctx context.Context, id int) error {
	err := c.do(ctx, http.MethodPatch, "/engine", engineQuery(id, "drive"), nil, nil)
	var se *StatusError
	if asStatus(err, &se) && se.Code == http.StatusInternalServerError {
		return fmt.Errorf("vehicle %d: %w", id, model.ErrEngineBroken)
	}
	return err
}

// Stop stops an engine.
func (c *Client) Stop(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodPatch, "/engine", engineQuery(id, "stopped"), nil, nil)
}

func engineQuery(id int, status string) url.Values {
	return url.Values{"id": {strconv.Itoa(id)}, "status": {status}}
}

func (c *Client) list(ctx context.Context, path string, q model.Query, out any) (int, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	params := url.Values{
		"_page":  {strconv.Itoa(q.Page)},
		"_limit": {strconv.Itoa(q.Limit)},
	}
	if q.Sort != model.SortNone {
		params.Set("_sort", string(q.Sort))
		if q.Order != "" {
			params.Set("_order", string(q.Order))
		}
	}

	resp, err := c.send(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return 0, fmt.Errorf("decode %s: %w", path, err)
	}
	total, err := strconv.Atoi(resp.Header.Get(totalCountHeader))
	if err != nil {
		return 0, fmt.Errorf("%w: %s header %q", ErrBadResponse, totalCountHeader, resp.Header.Get(totalCountHeader))
	}
	return total, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	resp, err := c.send(ctx, method, path, params, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// send returns the response for a 2xx status; other statuses become a
// *StatusError and the body is closed.
func (c *Client) send(ctx context.Context, method, path string, params url.Values, body any) (*http.Response, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	begin := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.logger.Debug(ctx, "backend call",
		logger.String("method", method),
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.Int("ms", int(time.Since(begin).Milliseconds())))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, newStatusError(method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
}
