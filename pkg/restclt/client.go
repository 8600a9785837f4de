package restclt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultTimeout = 10 * time.Second

	// TimeLayout matches the ISO-8601 form the backend parses for start/end params.
	TimeLayout = "2006-01-02T15:04:05.000Z"
)

var ErrNoBaseURL = errors.New("base url is required")

type RequestOption struct {
	Method string
	Path   string
	Params url.Values
	Body   interface{}
}

// StatusError is returned for any response outside the 2xx range.
type StatusError struct {
	StatusCode int
	Status     string
	Method     string
	URL        string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	logger     zerolog.Logger
}

func NewClient(options *Options) (*Client, error) {
	if options.BaseURL == "" {
		return nil, ErrNoBaseURL
	}

	baseURL, err := url.Parse(strings.TrimRight(options.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	clt := &Client{
		baseURL:    baseURL,
		httpClient: options.HTTPClient,
		timeout:    options.Timeout,
		logger:     options.Logger.With().Str("component", "restclt").Logger(),
	}

	if clt.httpClient == nil {
		clt.httpClient = &http.Client{}
	}

	if clt.timeout <= 0 {
		clt.timeout = DefaultTimeout
	}

	return clt, nil
}

// URL resolves an already escaped path against the base url without sending anything.
func (clt *Client) URL(path string, params url.Values) string {
	requestURL := clt.baseURL.String() + path
	if len(params) > 0 {
		// Encode sorts by key.
		requestURL += "?" + params.Encode()
	}

	return requestURL
}

// Do sends the request and decodes a 2xx JSON response into out when out is not nil.
func (clt *Client) Do(ctx context.Context, option *RequestOption, out interface{}) error {
	method := strings.ToUpper(option.Method)
	if method == "" {
		method = http.MethodGet
	}

	requestURL := clt.URL(option.Path, option.Params)

	var body io.Reader
	if option.Body != nil {
		dataBytes, err := json.Marshal(option.Body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(dataBytes)
	}

	ctx, cancel := context.WithTimeout(ctx, clt.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return err
	}

	req.Header.Add("Accept", "application/json")
	if body != nil {
		req.Header.Add("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := clt.httpClient.Do(req)
	if err != nil {
		clt.logger.Debug().Err(err).Str("method", method).Str("url", requestURL).Msg("request failed")
		return fmt.Errorf("%s %s: %w", method, requestURL, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			clt.logger.Warn().Err(err).Msg("close response body")
		}
	}(resp.Body)

	clt.logger.Debug().
		Str("method", method).
		Str("url", requestURL).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request done")

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Method:     method,
			URL:        requestURL,
			Body:       bodyBytes,
		}
	}

	if out == nil || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return nil
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", requestURL, err)
	}

	return nil
}

// FormatTime renders t the way JavaScript's toISOString does.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
