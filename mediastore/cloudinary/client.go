// Package cloudinary implementa mediastore.Store sobre a API REST da Cloudinary
// (Search API para listagem e upload assinado).
package cloudinary

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"gallery-gateway/mediastore"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.cloudinary.com/v1_1"

type Client struct {
	http      *resty.Client
	cloudName string
	apiKey    string
	apiSecret string
	limiter   *rate.Limiter
	now       func() time.Time
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.http.SetBaseURL(strings.TrimRight(u, "/")) }
}

// WithRateLimit controla o ritmo de chamadas ao fornecedor (token bucket).
// rps <= 0 desliga.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(cloudName, apiKey, apiSecret string, opts ...Option) (*Client, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("cloudinary: cloud name, api key and api secret are required")
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(defaultBaseURL).
			SetTimeout(30*time.Second).
			SetHeader("Accept", "application/json"),
		cloudName: cloudName,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		limiter:   rate.NewLimiter(rate.Limit(5), 10),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", mediastore.ErrUpstream, err)
	}
	return nil
}

type searchRequest struct {
	Expression string              `json:"expression"`
	SortBy     []map[string]string `json:"sort_by"`
	MaxResults int                 `json:"max_results"`
	NextCursor string              `json:"next_cursor,omitempty"`
	WithField  []string            `json:"with_field,omitempty"`
}

type resource struct {
	PublicID  string    `json:"public_id"`
	SecureURL string    `json:"secure_url"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Format    string    `json:"format"`
	CreatedAt time.Time `json:"created_at"`
	Context   struct {
		Caption string `json:"caption"`
		Custom  struct {
			Caption string `json:"caption"`
		} `json:"custom"`
	} `json:"context"`
}

func (r resource) photo() mediastore.Photo {
	caption := r.Context.Custom.Caption
	if caption == "" {
		caption = r.Context.Caption
	}
	return mediastore.Photo{
		PublicID:  r.PublicID,
		SecureURL: r.SecureURL,
		Width:     r.Width,
		Height:    r.Height,
		Format:    r.Format,
		CreatedAt: r.CreatedAt,
		Caption:   caption,
	}
}

type searchResponse struct {
	TotalCount int        `json:"total_count"`
	NextCursor string     `json:"next_cursor"`
	Resources  []resource `json:"resources"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GetPhotos lista imagens, mais recentes primeiro.
func (c *Client) GetPhotos(ctx context.Context, opts mediastore.ListOptions) (mediastore.Page, error) {
	if err := c.wait(ctx); err != nil {
		return mediastore.Page{}, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 30
	}
	expr := "resource_type:image"
	if opts.Folder != "" {
		expr += " AND folder=" + opts.Folder
	}

	var out searchResponse
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.apiKey, c.apiSecret).
		SetBody(searchRequest{
			Expression: expr,
			SortBy:     []map[string]string{{"created_at": "desc"}},
			MaxResults: limit,
			NextCursor: opts.NextCursor,
			WithField:  []string{"context"},
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/" + c.cloudName + "/resources/search")
	if err := checkResponse("search", resp, err, apiErr); err != nil {
		return mediastore.Page{}, err
	}

	page := mediastore.Page{
		Photos:     make([]mediastore.Photo, 0, len(out.Resources)),
		NextCursor: out.NextCursor,
		TotalCount: out.TotalCount,
	}
	for _, r := range out.Resources {
		page.Photos = append(page.Photos, r.photo())
	}
	return page, nil
}

// Upload envia a imagem com upload assinado, aplicando qualidade/formato automáticos.
func (c *Client) Upload(ctx context.Context, in mediastore.UploadInput) (mediastore.Photo, error) {
	if err := c.wait(ctx); err != nil {
		return mediastore.Photo{}, err
	}

	params := map[string]string{
		"timestamp":      strconv.FormatInt(c.now().Unix(), 10),
		"transformation": "q_auto/f_auto",
	}
	if in.Folder != "" {
		params["folder"] = in.Folder
	}
	if in.PublicID != "" {
		params["public_id"] = in.PublicID
	}
	if in.Caption != "" {
		params["context"] = "caption=" + escapeContext(in.Caption)
	}
	params["signature"] = sign(params, c.apiSecret)
	params["api_key"] = c.apiKey

	filename := in.Filename
	if filename == "" {
		filename = "upload"
	}

	var out resource
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(params).
		SetFileReader("file", filename, in.Body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/" + c.cloudName + "/image/upload")
	if err := checkResponse("upload", resp, err, apiErr); err != nil {
		return mediastore.Photo{}, err
	}

	p := out.photo()
	if p.Caption == "" {
		p.Caption = in.Caption
	}
	return p, nil
}

func checkResponse(op string, resp *resty.Response, err error, apiErr apiError) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %v", mediastore.ErrUpstream, op, err)
	}
	if resp.IsError() || resp.StatusCode() != http.StatusOK {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = resp.Status()
		}
		return fmt.Errorf("%w: %s: status %d: %s", mediastore.ErrUpstream, op, resp.StatusCode(), msg)
	}
	return nil
}

// sign implementa a assinatura de upload da Cloudinary:
// sha1("k1=v1&k2=v2..." em ordem alfabética + api_secret).
func sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	b.WriteString(secret)

	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// escapeContext escapa os separadores do formato key=value|key=value.
func escapeContext(v string) string {
	r := strings.NewReplacer(`=`, `\=`, `|`, `\|`)
	return r.Replace(v)
}
