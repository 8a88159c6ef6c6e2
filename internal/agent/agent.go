package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/jsonout"
	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/llm"
	"github.com/rs/zerolog"
)

const DefaultSessionID = "hw03"

var (
	ErrMaxTurns   = errors.New("max turns exceeded")
	ErrEmptyInput = errors.New("question is required")
	ErrNoImage    = errors.New("image is required")
)

type Options struct {
	MaxTurns  int
	SessionID string
	Sessions  *SessionStore
}

type Agent struct {
	client      llm.Client
	toolHandler *ToolHandler
	sessions    *SessionStore
	logger      zerolog.Logger
	maxTurns    int
	sessionID   string
	now         func() time.Time
}

func NewAgent(client llm.Client, holidays HolidaySource, logger zerolog.Logger, opts Options) *Agent {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 10
	}
	if opts.SessionID == "" {
		opts.SessionID = DefaultSessionID
	}
	if opts.Sessions == nil {
		opts.Sessions = NewSessionStore()
	}

	return &Agent{
		client:      client,
		toolHandler: NewToolHandler(holidays),
		sessions:    opts.Sessions,
		logger:      logger,
		maxTurns:    opts.MaxTurns,
		sessionID:   opts.SessionID,
		now:         time.Now,
	}
}

func (a *Agent) Sessions() *SessionStore {
	return a.sessions
}

// GenerateHW01 asks the model directly and forces the holiday list JSON.
func (a *Agent) GenerateHW01(ctx context.Context, question string) (string, error) {
	if question == "" {
		return "", ErrEmptyInput
	}

	resp, err := a.client.Chat(ctx, llm.Request{
		Messages: []llm.Message{llm.UserMessage(hw01Prompt(question))},
		JSONMode: true,
	})
	if err != nil {
		return "", err
	}

	return a.parse("hw01", resp.Content, jsonout.KindList)
}

// GenerateHW02 lets the model call get_holidays before answering.
func (a *Agent) GenerateHW02(ctx context.Context, question string) (string, error) {
	if question == "" {
		return "", ErrEmptyInput
	}

	content, err := a.runTools(ctx, nil, llm.UserMessage(hw02Prompt(question)), true)
	if err != nil {
		return "", err
	}

	return a.parse("hw02", content, jsonout.KindList)
}

// GenerateHW03 asks question2 and then question3 in the same session, so
// the second answer can refer to the holiday list from the first. Each call
// starts the session over and holds it until both answers are in.
func (a *Agent) GenerateHW03(ctx context.Context, question2, question3 string) (string, error) {
	if question2 == "" || question3 == "" {
		return "", ErrEmptyInput
	}

	unlock := a.sessions.Lock(a.sessionID)
	defer unlock()
	a.sessions.Clear(a.sessionID)

	first, err := a.converse(ctx, a.sessionID, hw02Prompt(question2), true)
	if err != nil {
		return "", err
	}
	if _, err := jsonout.ParseResult(first, jsonout.KindList); err != nil {
		a.logger.Warn().Err(err).Str("session", a.sessionID).Msg("first answer is not a holiday list")
	}

	second, err := a.converse(ctx, a.sessionID, hw03Prompt(question3), true)
	if err != nil {
		return "", err
	}

	return a.parse("hw03", second, jsonout.KindObject)
}

// GenerateHW04 answers a question about an image.
func (a *Agent) GenerateHW04(ctx context.Context, question string, image llm.Image) (string, error) {
	if question == "" {
		return "", ErrEmptyInput
	}
	if len(image.Data) == 0 {
		return "", ErrNoImage
	}

	resp, err := a.client.Chat(ctx, llm.Request{
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: hw04Prompt(question),
			Images:  []llm.Image{image},
		}},
		JSONMode: true,
	})
	if err != nil {
		return "", err
	}

	return a.parse("hw04", resp.Content, jsonout.KindObject)
}

// Demo is a single plain chat model call.
func (a *Agent) Demo(ctx context.Context, question string) (string, error) {
	if question == "" {
		return "", ErrEmptyInput
	}

	resp, err := a.client.Chat(ctx, llm.Request{
		Messages: []llm.Message{llm.UserMessage(question)},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Chat is a free-form, tool-enabled turn in a session.
func (a *Agent) Chat(ctx context.Context, sessionID, message string) (string, error) {
	if message == "" {
		return "", ErrEmptyInput
	}
	if sessionID == "" {
		sessionID = a.sessionID
	}

	unlock := a.sessions.Lock(sessionID)
	defer unlock()
	return a.converse(ctx, sessionID, message, false)
}

func (a *Agent) ClearSession(sessionID string) bool {
	if a.sessions.Get(sessionID) == nil {
		return false
	}
	a.sessions.Clear(sessionID)
	return true
}

// converse replays the session history, runs one exchange and records it.
func (a *Agent) converse(ctx context.Context, sessionID, userContent string, jsonMode bool) (string, error) {
	history := a.sessions.History(sessionID)

	a.logger.Debug().
		Str("session", sessionID).
		Int("history", len(history)).
		Msg("session turn")

	content, err := a.runTools(ctx, toLLMMessages(history), llm.UserMessage(userContent), jsonMode)
	if err != nil {
		return "", err
	}

	a.sessions.Append(sessionID,
		Message{Role: llm.RoleUser, Content: userContent},
		Message{Role: llm.RoleAssistant, Content: content},
	)
	return content, nil
}

// runTools drives the tool-call loop until the model answers without
// requesting a tool or the turn budget runs out.
func (a *Agent) runTools(ctx context.Context, history []llm.Message, user llm.Message, jsonMode bool) (string, error) {
	messages := append(history, user)
	tools := a.toolHandler.Definitions()
	systemPrompt := holidaySystemPrompt(a.now())

	for turn := 1; turn <= a.maxTurns; turn++ {
		a.logger.Debug().Int("turn", turn).Str("client", a.client.Name()).Msg("agent turn")

		resp, err := a.client.Chat(ctx, llm.Request{
			Messages:     messages,
			Tools:        tools,
			SystemPrompt: systemPrompt,
			JSONMode:     jsonMode,
		})
		if err != nil {
			return "", err
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			a.logger.Info().Str("tool", tc.Name).RawJSON("input", rawInput(tc.Input)).Msg("executing tool")

			result, err := a.toolHandler.ExecuteTool(ctx, tc.Name, tc.Input)
			if err != nil {
				a.logger.Error().Err(err).Str("tool", tc.Name).Msg("tool execution failed")
				result = fmt.Sprintf("Error: %v", err)
			}

			messages = append(messages, llm.ToolResultMessage(tc, result))
		}
	}

	return "", fmt.Errorf("%w (%d)", ErrMaxTurns, a.maxTurns)
}

func (a *Agent) parse(exercise, content string, kind jsonout.Kind) (string, error) {
	result, err := jsonout.ParseResult(content, kind)
	if err != nil {
		a.logger.Warn().Err(err).Str("exercise", exercise).Str("reply", truncate(content, 200)).Msg("unusable model reply")
		return "", err
	}
	return result, nil
}

func rawInput(input []byte) []byte {
	if len(input) == 0 || !json.Valid(input) {
		return []byte("{}")
	}
	return input
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
