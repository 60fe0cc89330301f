package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func webGetter() *fakeGetter {
	return &fakeGetter{vals: map[string]string{"/asha/brave-api-key": "brave-key"}}
}

func newWebSearch(t *testing.T, baseURL string) *Tool {
	t.Helper()
	tool, err := NewWebSearchTool(WebSearchConfig{
		Getter:       webGetter(),
		KeyParameter: "/asha/brave-api-key",
		BaseURL:      baseURL,
	})
	require.NoError(t, err)
	return tool
}

func TestNewWebSearchTool_Validation(t *testing.T) {
	_, err := NewWebSearchTool(WebSearchConfig{KeyParameter: "/asha/brave-api-key"})
	require.Error(t, err)

	_, err = NewWebSearchTool(WebSearchConfig{Getter: webGetter(), KeyParameter: ""})
	require.Error(t, err)
}

func TestWebSearch_FormatsResults(t *testing.T) {
	var gotReq *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		_, _ = w.Write([]byte(`{"web":{"results":[
			{"title":"Women in Tech Summit","url":"https://example.com/summit","description":"Annual conference."},
			{"title":"Mentorship Program","url":"https://example.com/mentors","description":"Find a mentor."}
		]}}`))
	}))
	defer srv.Close()

	tool := newWebSearch(t, srv.URL)
	out, err := tool.Run(context.Background(), map[string]any{"query": "women in tech events"})
	require.NoError(t, err)

	require.Contains(t, out, "🔗 Women in Tech Summit\nhttps://example.com/summit\nAnnual conference.")
	require.Contains(t, out, "🔗 Mentorship Program")

	require.Equal(t, "brave-key", gotReq.Header.Get("X-Subscription-Token"))
	q := gotReq.URL.Query()
	require.Equal(t, "women in tech events", q.Get("q"))
	require.Equal(t, "3", q.Get("count"))
}

func TestWebSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"web":{"results":[]}}`))
	}))
	defer srv.Close()

	tool := newWebSearch(t, srv.URL)
	out, err := tool.Run(context.Background(), map[string]any{"query": "nothing"})
	require.NoError(t, err)
	require.Equal(t, "🔍 No results found for 'nothing'.", out)
}

func TestWebSearch_UpstreamFailureBecomesReplyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	tool := newWebSearch(t, srv.URL)
	out, err := tool.Run(context.Background(), map[string]any{"query": "events"})
	require.NoError(t, err)
	require.Contains(t, out, "⚠️ Web search failed with status 429")
	require.Contains(t, out, "slow down")
}
