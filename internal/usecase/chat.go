package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"asha-agent/internal/domain"
	"asha-agent/internal/tools"
)

const (
	defaultMaxMessage = 1000

	// toolTurnMarker is the assistant content persisted in place of raw tool
	// output, so tool results are never replayed into future prompts.
	toolTurnMarker = "tool called"
)

// ProfileGetter resolves user profiles; the auth collaborator owns them.
type ProfileGetter interface {
	GetProfile(ctx context.Context, email string) (*domain.UserProfile, error)
}

// TurnStore is the durable per-session turn log and rolling summary.
type TurnStore interface {
	GetTurns(ctx context.Context, sessionKey string) ([]domain.Turn, error)
	GetSummary(ctx context.Context, sessionKey string) (string, error)
	AppendTurnPair(ctx context.Context, sessionKey, userContent, assistantContent string) error
	ReplaceSummary(ctx context.Context, sessionKey, summary string) error
}

// ModelClient invokes the language model with the assembled prompt.
type ModelClient interface {
	Generate(ctx context.Context, messages []domain.ChatMessage) (domain.ModelReply, error)
}

// Summarizer compresses a transcript to the given word bounds.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxWords, minWords int) (string, error)
}

// ToolInvoker resolves a tool name and runs the capability.
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// ChatService orchestrates one conversation turn: load history, refresh the
// rolling summary when due, assemble the prompt, invoke the model, resolve
// a tool call or final answer, persist the pair, respond.
type ChatService struct {
	profiles      ProfileGetter
	store         TurnStore
	model         ModelClient
	summarizer    Summarizer
	tools         ToolInvoker
	maxMessageLen int
}

type ChatInput struct {
	SessionKey string
	Message    string
}

type ChatOutput struct {
	Reply string
}

func NewChatService(profiles ProfileGetter, store TurnStore, model ModelClient, summarizer Summarizer, invoker ToolInvoker, maxMessageLen int) (*ChatService, error) {
	if profiles == nil {
		return nil, errors.New("usecase: profile getter must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: turn store must not be nil")
	}
	if model == nil {
		return nil, errors.New("usecase: model client must not be nil")
	}
	if summarizer == nil {
		return nil, errors.New("usecase: summarizer must not be nil")
	}
	if invoker == nil {
		return nil, errors.New("usecase: tool invoker must not be nil")
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessage
	}
	return &ChatService{
		profiles:      profiles,
		store:         store,
		model:         model,
		summarizer:    summarizer,
		tools:         invoker,
		maxMessageLen: maxMessageLen,
	}, nil
}

// Chat runs one full turn for a session. Summarization, tool-lookup and
// persistence failures all degrade so the caller receives a reply; only
// input validation, profile resolution, history load and the model call
// itself can fail the request.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(message) > s.maxMessageLen {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	sessionKey := strings.TrimSpace(in.SessionKey)
	if sessionKey == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_session_key", nil)
	}

	profile, err := s.profiles.GetProfile(ctx, sessionKey)
	if err != nil {
		return ChatOutput{}, newError(ErrorInternal, "profile_read_error", err)
	}
	if profile == nil {
		return ChatOutput{}, newError(ErrorProfileNotFound, "unknown_user", nil)
	}

	turns, err := s.store.GetTurns(ctx, sessionKey)
	if err != nil {
		return ChatOutput{}, newError(ErrorInternal, "turn_log_read_error", err)
	}

	summary := s.refreshSummary(ctx, sessionKey, turns)

	reply, err := s.model.Generate(ctx, buildPromptMessages(profile, summary, turns, message))
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return ChatOutput{}, newError(ErrorRateLimited, "model_rate_limited", err)
		}
		return ChatOutput{}, newError(ErrorUpstream, "model_error", err)
	}

	replyText, storedReply := s.resolveReply(ctx, reply)

	if err := s.store.AppendTurnPair(ctx, sessionKey, message, storedReply); err != nil {
		// The reply is already computed; deliver it and accept the
		// durability gap rather than failing the turn.
		slog.Error("failed to persist turn pair", "session", sessionKey, "err", err)
	}

	return ChatOutput{Reply: replyText}, nil
}

// resolveReply turns a model reply into the user-facing text and the
// assistant content to persist. Only the first requested tool invocation is
// executed; any further requests in the same reply are dropped without
// running. Unknown tool names become an apologetic reply rather than an
// error.
func (s *ChatService) resolveReply(ctx context.Context, reply domain.ModelReply) (replyText, storedReply string) {
	if reply.Kind != domain.ReplyToolRequest || len(reply.ToolCalls) == 0 {
		return reply.Text, reply.Text
	}

	call := reply.ToolCalls[0]
	if dropped := len(reply.ToolCalls) - 1; dropped > 0 {
		slog.Debug("dropping extra tool calls", "tool", call.Name, "dropped", dropped)
	}

	result, err := s.tools.Invoke(ctx, call.Name, call.Args)
	switch {
	case errors.Is(err, tools.ErrToolNotFound):
		replyText = fmt.Sprintf("I'm sorry, I don't have a capability called %q yet, so I couldn't finish that request.", call.Name)
	case err != nil:
		replyText = fmt.Sprintf("Something went wrong while using %s: %v", call.Name, err)
	default:
		replyText = result
	}
	return replyText, toolTurnMarker
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
