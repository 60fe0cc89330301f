package usecase

import (
	"fmt"
	"strings"

	"asha-agent/internal/domain"
)

const (
	placeholderName    = "User"
	placeholderDomain  = "the industry"
	placeholderAge     = "unknown age"
	placeholderSummary = "No prior summary."

	// recentTurnWindow is how many raw turns appear verbatim in the prompt;
	// older context only reaches the model through the rolling summary.
	recentTurnWindow = 10
)

// buildPromptMessages assembles the full model input: the persona system
// message followed by one combined context/question message. It is a pure
// transform and never fails on absent profile fields, summary or history.
func buildPromptMessages(profile *domain.UserProfile, summary string, turns []domain.Turn, question string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildPersonaPrompt(profile)},
		{Role: domain.RoleUser, Content: buildContextPrompt(summary, turns, question)},
	}
}

func buildPersonaPrompt(profile *domain.UserProfile) string {
	name, userDomain, age := placeholderName, placeholderDomain, placeholderAge
	if profile != nil {
		if strings.TrimSpace(profile.Name) != "" {
			name = profile.Name
		}
		if strings.TrimSpace(profile.Domain) != "" {
			userDomain = profile.Domain
		}
		if strings.TrimSpace(profile.Age) != "" {
			age = profile.Age
		}
	}
	return strings.Join([]string{
		"You are Asha, an inclusive career assistant for women.",
		"You provide personalized career guidance based on each user's information.",
		"Current user:",
		fmt.Sprintf("- Name: %s", name),
		fmt.Sprintf("- Domain: %s", userDomain),
		fmt.Sprintf("- Age: %s", age),
		"Always be empathetic and helpful.",
	}, "\n")
}

func buildContextPrompt(summary string, turns []domain.Turn, question string) string {
	if strings.TrimSpace(summary) == "" {
		summary = placeholderSummary
	}
	return fmt.Sprintf(
		"Summary of previous conversation:\n%s\n\nRecent conversation:\n%s\n\nUser's latest question:\n%s",
		summary,
		renderRecentTurns(turns),
		question,
	)
}

// renderRecentTurns formats the last turns of the window as speaker-tagged
// lines. Any role other than user renders as Asha; historical anomalies are
// tolerated, not rejected.
func renderRecentTurns(turns []domain.Turn) string {
	if len(turns) > recentTurnWindow {
		turns = turns[len(turns)-recentTurnWindow:]
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		speaker := "Asha"
		if t.Role == domain.RoleUser {
			speaker = "User"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", speaker, t.Content))
	}
	return strings.Join(lines, "\n")
}
