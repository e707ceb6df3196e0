package supplier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"luxestore-backend/internal/config"
	"luxestore-backend/internal/infrastructure/metrics"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// MaxPageSize is the supplier's hard listing page limit.
const MaxPageSize = 50

// Credentials authenticate against the CJ API.
type Credentials struct {
	Email  string
	APIKey string
}

// CredentialsSource resolves credentials at call time, so settings changes
// take effect without a restart.
type CredentialsSource interface {
	SupplierCredentials(ctx context.Context) (Credentials, error)
}

// StaticCredentials is a CredentialsSource backed by fixed values.
type StaticCredentials Credentials

func (s StaticCredentials) SupplierCredentials(ctx context.Context) (Credentials, error) {
	return Credentials(s), nil
}

// RawProduct is one supplier catalog record, normalized from the wire shape.
type RawProduct struct {
	ExternalID      string
	Name            string
	NameAr          string
	Description     string
	Images          []string
	SKU             string
	Category        string
	WeightKg        float64
	SellPrice       decimal.Decimal // USD
	ShippingPrice   decimal.Decimal // USD
	Stock           int
}

// ProductPage is one page of the supplier listing.
type ProductPage struct {
	Items []RawProduct
	Total int
}

// Client is the outbound supplier API surface the importer depends on.
type Client interface {
	ListProducts(ctx context.Context, pageNum, pageSize int, keyword string) (*ProductPage, error)
	GetProductDetails(ctx context.Context, externalID string) (*RawProduct, error)
}

// CJClient talks to the CJ dropshipping API. A single instance is shared by
// all callers in the process: the token bucket and the semaphore bound
// global outbound traffic regardless of how many imports run concurrently.
type CJClient struct {
	cfg   config.CJConfig
	creds CredentialsSource

	httpClient *http.Client
	limiter    *rate.Limiter
	sem        *semaphore.Weighted

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewCJClient(cfg config.CJConfig, creds CredentialsSource) *CJClient {
	return &CJClient{
		cfg:        cfg,
		creds:      creds,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RPS), 1),
		sem:        semaphore.NewWeighted(cfg.MaxConcurrency),
	}
}

// cjEnvelope is the supplier's standard response wrapper.
type cjEnvelope struct {
	Code    int             `json:"code"`
	Result  bool            `json:"result"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type cjProduct struct {
	Pid           string          `json:"pid"`
	ProductNameEn string          `json:"productNameEn"`
	ProductNameAr string          `json:"productNameAr"`
	Description   string          `json:"description"`
	ProductImage  string          `json:"productImage"`
	ProductImages []string        `json:"productImageSet"`
	ProductSku    string          `json:"productSku"`
	CategoryName  string          `json:"categoryName"`
	ProductWeight json.Number     `json:"productWeight"`
	SellPrice     json.Number     `json:"sellPrice"`
	ShippingPrice json.Number     `json:"shippingPrice"`
	ListedNum     int             `json:"listedNum"`
}

type cjProductList struct {
	Total int         `json:"total"`
	List  []cjProduct `json:"list"`
}

// ListProducts fetches one listing page. pageSize is clamped to MaxPageSize.
func (c *CJClient) ListProducts(ctx context.Context, pageNum, pageSize int, keyword string) (*ProductPage, error) {
	if pageNum < 1 {
		pageNum = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	q := url.Values{}
	q.Set("pageNum", strconv.Itoa(pageNum))
	q.Set("pageSize", strconv.Itoa(pageSize))
	if keyword != "" {
		q.Set("productNameEn", keyword)
	}

	data, err := c.doAuthenticated(ctx, http.MethodGet, "/product/list", q)
	if err != nil {
		return nil, err
	}

	var list cjProductList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode product list: %w", err)
	}

	page := &ProductPage{Total: list.Total, Items: make([]RawProduct, 0, len(list.List))}
	for _, p := range list.List {
		page.Items = append(page.Items, normalizeProduct(p))
	}
	return page, nil
}

// GetProductDetails fetches one product by supplier ID.
func (c *CJClient) GetProductDetails(ctx context.Context, externalID string) (*RawProduct, error) {
	q := url.Values{}
	q.Set("pid", externalID)

	data, err := c.doAuthenticated(ctx, http.MethodGet, "/product/query", q)
	if err != nil {
		return nil, err
	}

	var p cjProduct
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode product details: %w", err)
	}

	raw := normalizeProduct(p)
	return &raw, nil
}

func normalizeProduct(p cjProduct) RawProduct {
	images := p.ProductImages
	if len(images) == 0 && p.ProductImage != "" {
		images = []string{p.ProductImage}
	}

	weight, _ := p.ProductWeight.Float64()
	sell, _ := decimal.NewFromString(p.SellPrice.String())
	shipping, _ := decimal.NewFromString(p.ShippingPrice.String())

	return RawProduct{
		ExternalID:    p.Pid,
		Name:          p.ProductNameEn,
		NameAr:        p.ProductNameAr,
		Description:   p.Description,
		Images:        images,
		SKU:           p.ProductSku,
		Category:      p.CategoryName,
		WeightKg:      weight,
		SellPrice:     sell,
		ShippingPrice: shipping,
		Stock:         p.ListedNum,
	}
}

// doAuthenticated performs an API call with the access token attached,
// fetching a token first when necessary.
func (c *CJClient) doAuthenticated(ctx context.Context, method, path string, query url.Values) (json.RawMessage, error) {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{"CJ-Access-Token": token}
	return c.do(ctx, method, path, query, nil, headers)
}

type cjTokenResponse struct {
	AccessToken       string `json:"accessToken"`
	AccessTokenExpiry string `json:"accessTokenExpiryDate"`
}

func (c *CJClient) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.accessToken != "" && time.Now().UTC().Before(c.tokenExpiry) {
		token := c.accessToken
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	creds, err := c.creds.SupplierCredentials(ctx)
	if err != nil {
		return "", err
	}
	if creds.Email == "" || creds.APIKey == "" {
		return "", ErrMissingCredentials
	}

	body, err := json.Marshal(map[string]string{
		"email":    creds.Email,
		"password": creds.APIKey,
	})
	if err != nil {
		return "", err
	}

	data, err := c.do(ctx, http.MethodPost, "/authentication/getAccessToken", nil, body, nil)
	if err != nil {
		return "", err
	}

	var tok cjTokenResponse
	if err := json.Unmarshal(data, &tok); err != nil {
		return "", fmt.Errorf("failed to decode access token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", &RemoteError{Status: http.StatusUnauthorized, Body: "empty access token"}
	}

	expiry := time.Now().UTC().Add(7 * 24 * time.Hour)
	if t, perr := time.Parse("2006-01-02 15:04:05", tok.AccessTokenExpiry); perr == nil {
		expiry = t
	}

	c.mu.Lock()
	c.accessToken = tok.AccessToken
	c.tokenExpiry = expiry
	c.mu.Unlock()

	return tok.AccessToken, nil
}

// do executes one request with the shared rate limit, bounded concurrency
// and the retry policy: up to MaxAttempts on 429/5xx/transport errors with
// exponential backoff, immediate failure on permanent 4xx.
func (c *CJClient) do(ctx context.Context, method, path string, query url.Values, body []byte, headers map[string]string) (json.RawMessage, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	endpoint := c.cfg.BaseURL + path
	backoff := c.cfg.BackoffBase

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		data, retryable, err := c.attempt(ctx, method, endpoint, query, body, headers)
		if err == nil {
			metrics.SupplierRequests.WithLabelValues(path, "ok").Inc()
			return data, nil
		}

		if !retryable {
			metrics.SupplierRequests.WithLabelValues(path, "permanent").Inc()
			log.Warn().Err(err).Str("endpoint", path).Int("attempt", attempt).
				Msg("Supplier request failed permanently")
			return nil, err
		}

		metrics.SupplierRequests.WithLabelValues(path, "retryable").Inc()
		log.Warn().Err(err).Str("endpoint", path).Int("attempt", attempt).
			Dur("backoff", backoff).Msg("Supplier request failed, retrying")
		lastErr = err

		if attempt == c.cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > c.cfg.BackoffCap {
			backoff = c.cfg.BackoffCap
		}
	}

	return nil, &TransientError{Attempts: c.cfg.MaxAttempts, Last: lastErr}
}

// attempt executes a single HTTP request. The bool reports whether the
// failure is retryable.
func (c *CJClient) attempt(ctx context.Context, method, endpoint string, query url.Values, body []byte, headers map[string]string) (json.RawMessage, bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	reqURL := endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, reqURL, reader)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failures (timeouts, resets) are retryable.
		return nil, true, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, true, err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("supplier responded %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, false, &RemoteError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var env cjEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, false, fmt.Errorf("failed to decode supplier response: %w", err)
	}
	if !env.Result {
		// The supplier reports application errors inside a 200 envelope.
		return nil, false, &RemoteError{Status: env.Code, Body: env.Message}
	}

	return env.Data, false, nil
}
