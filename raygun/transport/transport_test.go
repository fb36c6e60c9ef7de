package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sthembisoo/raygun4go/raygun/messages"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(APIKeyEnv, "secret")

	cfg := ConfigFromEnv()
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		missing bool
	}{
		{"no_key", Config{Endpoint: DefaultEndpoint}, true},
		{"bad_scheme", Config{APIKey: "k", Endpoint: "ftp://example.com"}, false},
		{"bad_url", Config{APIKey: "k", Endpoint: "http://[::1"}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.missing, errors.Is(err, ErrMissingCredentials))
		})
	}
}

func TestSend(t *testing.T) {
	t.Parallel()

	var gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotKey = r.Header.Get("X-ApiKey")
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &gotBody))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := New(Config{APIKey: "secret", Endpoint: srv.URL})
	require.NoError(t, err)

	msg := messages.NewMessage(&messages.ErrorMessage{ClassName: "E", Message: "boom"})
	require.NoError(t, client.Send(context.Background(), msg))

	assert.Equal(t, "secret", gotKey)
	details := gotBody["details"].(map[string]any)
	assert.Equal(t, "boom", details["error"].(map[string]any)["message"])
}

func TestSendRejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid api key"))
	}))
	defer srv.Close()

	client, err := New(Config{APIKey: "wrong", Endpoint: srv.URL, Timeout: time.Second})
	require.NoError(t, err)

	err = client.Send(context.Background(), messages.NewMessage(&messages.ErrorMessage{}))
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Equal(t, "invalid api key", statusErr.Body)

	assert.Error(t, client.Send(context.Background(), nil))
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/applications", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "20", r.URL.Query().Get("count"))
		_, _ = w.Write([]byte(`[{"identifier":"app1","name":"MyApp-prod"}]`))
	})
	mux.HandleFunc("/applications/app1/error-groups", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"identifier":"g1","message":"boom","status":"active","count":3},{"identifier":"g2","message":"old","status":"resolved","count":1}]`))
	})
	mux.HandleFunc("/applications/app1/error-groups/g1/errors", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("count"))
		_, _ = w.Write([]byte(`[{"error":{"className":"System.Exception","message":"boom","stackTrace":[{"lineNumber":7,"methodName":"Run()","fileName":"a.cs"}]},"request":{"url":"/home","httpMethod":"GET"}}]`))
	})
	mux.HandleFunc("/applications/app1/error-groups/empty/errors", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAPIClient(t *testing.T) {
	t.Parallel()

	srv := newAPIServer(t)
	client, err := NewAPIClient("token", srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	apps, err := client.Applications(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, []Application{{Identifier: "app1", Name: "MyApp-prod"}}, apps)

	groups, err := client.ErrorGroups(ctx, "app1")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.True(t, groups[0].IsActive())
	assert.False(t, groups[1].IsActive())

	report, err := client.LatestCrashReport(ctx, "app1", "g1")
	require.NoError(t, err)
	assert.Equal(t, "boom", report.Error.Message)
	assert.Equal(t, "GET", report.Request.Method)
	require.Len(t, report.Error.StackTrace, 1)
	assert.Equal(t, "Run()", report.Error.StackTrace[0].MethodName)

	_, err = client.LatestCrashReport(ctx, "app1", "empty")
	assert.ErrorContains(t, err, "no error details found")

	_, err = client.ErrorGroups(ctx, "missing")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestNewAPIClientRequiresToken(t *testing.T) {
	t.Parallel()

	_, err := NewAPIClient("", "")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}
