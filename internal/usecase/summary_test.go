package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"asha-agent/internal/domain"
)

func TestShouldSummarize(t *testing.T) {
	cases := []struct {
		turnCount int
		want      bool
	}{
		{0, false},
		{1, false},
		{9, false},
		{10, true},
		{11, false},
		{19, false},
		{20, true},
		{30, true},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, shouldSummarize(tc.turnCount), "turnCount=%d", tc.turnCount)
	}
}

func TestBuildTranscript_JoinsAndTruncates(t *testing.T) {
	turns := []domain.Turn{
		{Role: domain.RoleUser, Content: "first"},
		{Role: domain.RoleAssistant, Content: "second"},
		{Role: domain.RoleUser, Content: "third"},
	}
	require.Equal(t, "first second third", buildTranscript(turns))

	long := []domain.Turn{
		{Role: domain.RoleUser, Content: strings.Repeat("a", 3000)},
		{Role: domain.RoleAssistant, Content: strings.Repeat("b", 3000)},
	}
	got := buildTranscript(long)
	require.Len(t, got, transcriptCharLimit)
	require.True(t, strings.HasPrefix(got, "aaa"))
}

func TestSummaryBounds(t *testing.T) {
	cases := []struct {
		words   int
		wantMax int
		wantMin int
	}{
		{20, 14, 7},
		{100, 70, 35},
		{200, 100, 50},
		{1000, 100, 50},
		{10, 10, 5},
		{21, 15, 8},
	}
	for _, tc := range cases {
		maxWords, minWords := summaryBounds(tc.words)
		require.Equal(t, tc.wantMax, maxWords, "words=%d", tc.words)
		require.Equal(t, tc.wantMin, minWords, "words=%d", tc.words)
	}
}

func TestSummarizeTranscript_ShortTranscriptVerbatim(t *testing.T) {
	sum := &mockSummarizer{summary: "should not be used"}
	svc := newTestService(t, knownProfile(), &mockStore{}, &mockModel{}, sum, &mockInvoker{})

	turns := []domain.Turn{
		{Role: domain.RoleUser, Content: "hi there"},
		{Role: domain.RoleAssistant, Content: "hello, how can I help"},
	}
	got, err := svc.summarizeTranscript(context.Background(), turns)
	require.NoError(t, err)
	require.Equal(t, "hi there hello, how can I help", got)
	require.Zero(t, sum.callCount)
}

func TestSummarizeTranscript_PassesWordBounds(t *testing.T) {
	sum := &mockSummarizer{summary: "compressed"}
	svc := newTestService(t, knownProfile(), &mockStore{}, &mockModel{}, sum, &mockInvoker{})

	turns := []domain.Turn{
		{Role: domain.RoleUser, Content: strings.TrimSpace(strings.Repeat("word ", 200))},
	}
	got, err := svc.summarizeTranscript(context.Background(), turns)
	require.NoError(t, err)
	require.Equal(t, "compressed", got)
	require.Equal(t, 1, sum.callCount)
	require.Equal(t, 100, sum.capturedMax)
	require.Equal(t, 50, sum.capturedMin)
}
