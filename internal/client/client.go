package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"campsite/internal/api"
	"campsite/internal/domain"
	"campsite/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	cachePrefix        = "campsite:client:availability:"
	cacheGenerationKey = cachePrefix + "gen"
)

var _ domain.ReservationService = (*Client)(nil)

// Client calls the campsite HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// APIError is a non-2xx response. It matches the domain sentinel of its code
// under errors.Is.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch e.Code {
	case api.CodeValidation:
		return target == domain.ErrValidation
	case api.CodeDateConflict:
		return target == domain.ErrDateConflict
	case api.CodeGuestConflict:
		return target == domain.ErrGuestConflict
	case api.CodeNotFound:
		return target == domain.ErrNotFound
	}
	return false
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UseRedisCache caches availability responses for ttl. Mutations made through
// this client drop every cached answer; mutations made elsewhere may trail by
// up to ttl.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

func (c *Client) Book(ctx context.Context, r models.DateRange, email, name string) (uuid.UUID, error) {
	body := map[string]string{
		"start_date": r.Start.Format(models.DateLayout),
		"end_date":   r.End.Format(models.DateLayout),
		"email":      email,
		"name":       name,
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/reservations", body, &resp); err != nil {
		return uuid.Nil, err
	}
	c.invalidateCache(ctx)
	return uuid.Parse(resp.ID)
}

func (c *Client) Update(ctx context.Context, id uuid.UUID, req domain.UpdateRequest) error {
	body := map[string]any{}
	if req.Start != nil {
		body["start_date"] = req.Start.Format(models.DateLayout)
	}
	if req.End != nil {
		body["end_date"] = req.End.Format(models.DateLayout)
	}
	if req.Email != "" {
		body["email"] = req.Email
	}
	if req.Name != "" {
		body["name"] = req.Name
	}
	if err := c.do(ctx, http.MethodPut, "/api/v1/reservations/"+id.String(), body, nil); err != nil {
		return err
	}
	c.invalidateCache(ctx)
	return nil
}

func (c *Client) Cancel(ctx context.Context, id uuid.UUID) (*domain.CancelResult, error) {
	var result domain.CancelResult
	if err := c.do(ctx, http.MethodDelete, "/api/v1/reservations/"+id.String(), nil, &result); err != nil {
		return nil, err
	}
	c.invalidateCache(ctx)
	return &result, nil
}

func (c *Client) Reservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	if err := c.do(ctx, http.MethodGet, "/api/v1/reservations/"+id.String(), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetAvailability fetches availability for r.
func (c *Client) GetAvailability(ctx context.Context, r models.DateRange) (models.Availability, error) {
	cacheKey, cacheable := c.cacheKey(ctx, r)
	var availability models.Availability
	if cacheable && c.readCache(ctx, cacheKey, &availability) {
		return availability, nil
	}

	query := url.Values{}
	query.Set("start_date", r.Start.Format(models.DateLayout))
	query.Set("end_date", r.End.Format(models.DateLayout))
	if err := c.do(ctx, http.MethodGet, "/api/v1/availability?"+query.Encode(), nil, &availability); err != nil {
		return nil, err
	}
	if cacheable {
		c.writeCache(ctx, cacheKey, availability)
	}
	return availability, nil
}

func (c *Client) cacheEnabled() bool {
	return c.redis != nil && c.cacheTTL > 0
}

// cacheKey scopes the entry to the current generation. A missing generation
// reads as zero; a Redis failure disables caching for the call.
func (c *Client) cacheKey(ctx context.Context, r models.DateRange) (string, bool) {
	if !c.cacheEnabled() {
		return "", false
	}
	gen, err := c.redis.Get(ctx, cacheGenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", false
	}
	return fmt.Sprintf("%s%d:%s", cachePrefix, gen, r.String()), true
}

// invalidateCache moves to a new generation; old entries expire on their own.
func (c *Client) invalidateCache(ctx context.Context) {
	if !c.cacheEnabled() {
		return
	}
	_ = c.redis.Incr(ctx, cacheGenerationKey).Err()
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(val, out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{StatusCode: resp.StatusCode, Code: apiErr.Code, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
