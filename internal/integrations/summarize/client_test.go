package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeParams struct {
	vals      map[string]string
	err       error
	callCount int
}

func (f *fakeParams) GetParameter(_ context.Context, name string) (string, error) {
	f.callCount++
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.vals[name]
	if !ok {
		return "", errors.New("param not found: " + name)
	}
	return v, nil
}

func defaultParams() *fakeParams {
	return &fakeParams{vals: map[string]string{"/asha/huggingface-token": "hf-token"}}
}

func newTestClient(t *testing.T, baseURL string, ps Getter) *Client {
	t.Helper()
	c, err := NewClient(ps, "/asha", WithBaseURL(baseURL))
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil, "/asha")
	require.Error(t, err)

	_, err = NewClient(defaultParams(), "  ")
	require.Error(t, err)
}

func TestSummarize_HappyPath(t *testing.T) {
	var gotBody []byte
	var gotAuth string
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`[{"summary_text":"a short summary"}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, defaultParams())
	got, err := c.Summarize(context.Background(), "a long transcript to compress", 70, 35)
	require.NoError(t, err)
	require.Equal(t, "a short summary", got)
	require.Equal(t, "Bearer hf-token", gotAuth)
	require.Equal(t, "/models/t5-small", gotPath)

	var req summarizeRequest
	require.NoError(t, json.Unmarshal(gotBody, &req))
	require.Equal(t, "a long transcript to compress", req.Inputs)
	require.Equal(t, 70, req.Parameters.MaxLength)
	require.Equal(t, 35, req.Parameters.MinLength)
	require.False(t, req.Parameters.DoSample)
}

func TestSummarize_ModelOverride(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`[{"summary_text":"ok"}]`))
	}))
	defer srv.Close()

	c, err := NewClient(defaultParams(), "/asha", WithBaseURL(srv.URL), WithModel("facebook/bart-large-cnn"))
	require.NoError(t, err)
	_, err = c.Summarize(context.Background(), "text", 10, 5)
	require.NoError(t, err)
	require.Equal(t, "/models/facebook/bart-large-cnn", gotPath)
}

func TestSummarize_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("model loading"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, defaultParams())
	_, err := c.Summarize(context.Background(), "text", 10, 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status 503")
	require.Contains(t, err.Error(), "model loading")
}

func TestSummarize_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":"not a list"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, defaultParams())
	_, err := c.Summarize(context.Background(), "text", 10, 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestSummarize_EmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, defaultParams())
	_, err := c.Summarize(context.Background(), "text", 10, 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no results")
}

func TestSummarize_TokenCachedAcrossCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"summary_text":"ok"}]`))
	}))
	defer srv.Close()

	ps := defaultParams()
	c := newTestClient(t, srv.URL, ps)
	for i := 0; i < 3; i++ {
		_, err := c.Summarize(context.Background(), "text", 10, 5)
		require.NoError(t, err)
	}
	require.Equal(t, 1, ps.callCount)
}

func TestSummarize_TokenResolutionFailure(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:0", &fakeParams{err: errors.New("ssm offline")})
	_, err := c.Summarize(context.Background(), "text", 10, 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "fetch API token")
}

func TestFetchAPIKey_AcceptsJSONValue(t *testing.T) {
	ps := &fakeParams{vals: map[string]string{"/asha/huggingface-token": `{"token":"wrapped"}`}}
	key, err := fetchAPIKey(context.Background(), ps, "/asha/huggingface-token")
	require.NoError(t, err)
	require.Equal(t, "wrapped", key)
}
