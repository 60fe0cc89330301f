package usecase

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"asha-agent/internal/domain"
)

const (
	// summarizeEveryTurns triggers on the total stored turn count, user and
	// assistant combined, so the summary refreshes every 5 exchange pairs.
	summarizeEveryTurns = 10

	// transcriptCharLimit caps the text handed to the summarization model.
	transcriptCharLimit = 4000

	// minSummarizableWords is the threshold below which the transcript is
	// kept verbatim instead of being compressed.
	minSummarizableWords = 20

	summaryTargetRatio = 0.7
	summaryMaxWords    = 100
	summaryFloorWords  = 10
)

// shouldSummarize reports whether the rolling summary is due for a refresh,
// evaluated against the stored turn count before the current pair is
// appended.
func shouldSummarize(turnCount int) bool {
	return turnCount > 0 && turnCount%summarizeEveryTurns == 0
}

// buildTranscript joins every turn's content with single spaces and
// truncates to the summarization input cap.
func buildTranscript(turns []domain.Turn) string {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		parts = append(parts, t.Content)
	}
	transcript := strings.Join(parts, " ")
	if len(transcript) > transcriptCharLimit {
		transcript = transcript[:transcriptCharLimit]
	}
	return transcript
}

// summaryBounds derives the target and minimum summary lengths in words:
// 70% of the transcript clamped to [10, 100], with a minimum of half the
// target but never below 5.
func summaryBounds(wordCount int) (maxWords, minWords int) {
	maxWords = int(math.Round(summaryTargetRatio * float64(wordCount)))
	if maxWords > summaryMaxWords {
		maxWords = summaryMaxWords
	}
	if maxWords < summaryFloorWords {
		maxWords = summaryFloorWords
	}
	minWords = int(math.Round(0.5 * float64(maxWords)))
	if minWords < 5 {
		minWords = 5
	}
	return maxWords, minWords
}

// summarizeTranscript compresses the full transcript-to-date. Transcripts
// under the word threshold are returned verbatim without calling the
// summarization collaborator.
func (s *ChatService) summarizeTranscript(ctx context.Context, turns []domain.Turn) (string, error) {
	transcript := buildTranscript(turns)
	words := len(strings.Fields(transcript))
	if words < minSummarizableWords {
		return transcript, nil
	}
	maxWords, minWords := summaryBounds(words)
	return s.summarizer.Summarize(ctx, transcript, maxWords, minWords)
}

// refreshSummary recomputes the rolling summary when due and returns the
// summary to use for this turn's prompt. Every failure here degrades to the
// previously stored summary (or none at all); a summarization outage must
// never fail the turn.
func (s *ChatService) refreshSummary(ctx context.Context, sessionKey string, turns []domain.Turn) string {
	if shouldSummarize(len(turns)) {
		fresh, err := s.summarizeTranscript(ctx, turns)
		if err != nil {
			slog.Warn("summary refresh failed, keeping prior summary", "session", sessionKey, "err", err)
		} else {
			if err := s.store.ReplaceSummary(ctx, sessionKey, fresh); err != nil {
				slog.Warn("failed to persist refreshed summary", "session", sessionKey, "err", err)
			}
			// The prompt for this turn uses the fresh summary even when the
			// write raced or failed.
			return fresh
		}
	}

	saved, err := s.store.GetSummary(ctx, sessionKey)
	if err != nil {
		slog.Warn("failed to load stored summary", "session", sessionKey, "err", err)
		return ""
	}
	return saved
}
