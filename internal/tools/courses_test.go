package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func coursesGetter() *fakeGetter {
	return &fakeGetter{vals: map[string]string{"/asha/udemy-api-key": "courses-key"}}
}

func newCourseSearch(t *testing.T, baseURL string) *Tool {
	t.Helper()
	tool, err := NewCourseSearchTool(CourseSearchConfig{
		Getter:       coursesGetter(),
		KeyParameter: "/asha/udemy-api-key",
		BaseURL:      baseURL,
	})
	require.NoError(t, err)
	return tool
}

func TestNewCourseSearchTool_Validation(t *testing.T) {
	_, err := NewCourseSearchTool(CourseSearchConfig{KeyParameter: "/asha/udemy-api-key"})
	require.Error(t, err)

	_, err = NewCourseSearchTool(CourseSearchConfig{Getter: coursesGetter(), KeyParameter: ""})
	require.Error(t, err)
}

func TestCourseSearch_FormatsCards(t *testing.T) {
	var gotReq *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		_, _ = w.Write([]byte(`[
			{"title":"Python for Beginners","rating":4.5,"duration":12,"category":"Development","language":"English","desc_text":"` + strings.Repeat("x", 150) + `"}
		]`))
	}))
	defer srv.Close()

	tool := newCourseSearch(t, srv.URL)
	out, err := tool.Run(context.Background(), map[string]any{"query": "python"})
	require.NoError(t, err)

	require.Contains(t, out, "🎯 Python for Beginners")
	require.Contains(t, out, "⭐ Rating: 4.5/5 | ⏳ Duration: 12 hours")
	require.Contains(t, out, "📚 Category: Development | 🌐 Language: English")
	require.Contains(t, out, "📝 Description: "+strings.Repeat("x", 100)+"...")

	require.Equal(t, "courses-key", gotReq.Header.Get("x-rapidapi-key"))
	require.Equal(t, courseSearchHost, gotReq.Header.Get("x-rapidapi-host"))
	require.Equal(t, "python", gotReq.URL.Query().Get("s"))
}

func TestCourseSearch_CapsAtFiveCourses(t *testing.T) {
	entries := make([]string, 7)
	for i := range entries {
		entries[i] = `{"title":"Course ` + string(rune('A'+i)) + `","rating":4,"duration":1,"category":"c","language":"l","desc_text":"d"}`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[" + strings.Join(entries, ",") + "]"))
	}))
	defer srv.Close()

	tool := newCourseSearch(t, srv.URL)
	out, err := tool.Run(context.Background(), map[string]any{"query": "everything"})
	require.NoError(t, err)
	require.Contains(t, out, "Course E")
	require.NotContains(t, out, "Course F")
}

func TestCourseSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	tool := newCourseSearch(t, srv.URL)
	out, err := tool.Run(context.Background(), map[string]any{"query": "basket weaving"})
	require.NoError(t, err)
	require.Equal(t, "🔍 No courses found for 'basket weaving'. Try a different search term.", out)
}

func TestCourseSearch_UpstreamFailureBecomesReplyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tool := newCourseSearch(t, srv.URL)
	out, err := tool.Run(context.Background(), map[string]any{"query": "python"})
	require.NoError(t, err)
	require.Contains(t, out, "⚠️ API Error: unexpected status 502")
}

func TestCourseSearch_MalformedBodyBecomesReplyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	}))
	defer srv.Close()

	tool := newCourseSearch(t, srv.URL)
	out, err := tool.Run(context.Background(), map[string]any{"query": "python"})
	require.NoError(t, err)
	require.Contains(t, out, "⚠️ Data Error")
}
