package restclt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	clt, err := NewClient(&Options{
		BaseURL: server.URL + "/",
		Timeout: time.Second,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)

	return clt
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(&Options{})
	assert.ErrorIs(t, err, ErrNoBaseURL)
}

func TestClient_URL(t *testing.T) {
	clt, err := NewClient(&Options{BaseURL: "http://localhost:8080/", Logger: zerolog.Nop()})
	require.NoError(t, err)

	params := url.Values{}
	params.Set("start", "2024-01-01T00:00:00.000Z")
	params.Set("end", "2024-01-02T00:00:00.000Z")

	assert.Equal(t,
		"http://localhost:8080/api/orders/history/range?end=2024-01-02T00%3A00%3A00.000Z&start=2024-01-01T00%3A00%3A00.000Z",
		clt.URL("/api/orders/history/range", params),
	)
	assert.Equal(t, "http://localhost:8080/api/balance/BTC", clt.URL("/api/balance/BTC", nil))
}

func TestClient_Do_DecodesJSON(t *testing.T) {
	clt := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/echo", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"name":"kairos"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	var out struct {
		Ok bool `json:"ok"`
	}

	err := clt.Do(context.Background(), &RequestOption{
		Method: "post",
		Path:   "/api/echo",
		Body:   map[string]string{"name": "kairos"},
	}, &out)

	require.NoError(t, err)
	assert.True(t, out.Ok)
}

func TestClient_Do_NoBodyOnGet(t *testing.T) {
	clt := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Empty(t, r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	})

	out := map[string]string{"untouched": "yes"}
	require.NoError(t, clt.Do(context.Background(), &RequestOption{Path: "/empty"}, &out))
	assert.Equal(t, "yes", out["untouched"])
}

func TestClient_Do_StatusError(t *testing.T) {
	clt := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	})

	err := clt.Do(context.Background(), &RequestOption{Method: http.MethodDelete, Path: "/api/orders/x"}, nil)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, http.MethodDelete, statusErr.Method)
	assert.Contains(t, string(statusErr.Body), "not found")
	assert.Contains(t, statusErr.Error(), "404")
}

func TestClient_Do_DecodeError(t *testing.T) {
	clt := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	var out map[string]interface{}
	err := clt.Do(context.Background(), &RequestOption{Path: "/broken"}, &out)
	assert.ErrorContains(t, err, "decode response")
}

func TestClient_Do_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	clt, err := NewClient(&Options{BaseURL: serverURL, Logger: zerolog.Nop()})
	require.NoError(t, err)

	err = clt.Do(context.Background(), &RequestOption{Path: "/gone"}, nil)
	require.Error(t, err)

	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
}

func TestFormatTime(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2024, 3, 1, 12, 30, 15, 123456789, loc)

	assert.Equal(t, "2024-03-01T10:30:15.123Z", FormatTime(ts))
}
