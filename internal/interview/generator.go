package interview

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"github.com/wren-reads/wren/internal/genai"
	"github.com/wren-reads/wren/internal/models"
)

// DefaultHistoryLimit is how many recent messages accompany a question request.
const DefaultHistoryLimit = 24

// ErrEmptyQuestion is returned when the model produced no question text.
var ErrEmptyQuestion = errors.New("generated question is empty")

// QuestionRequest is the context handed to the question generator.
type QuestionRequest struct {
	SessionID string
	TurnCount int
	History   []models.Message
	Analysis  models.CoverageSnapshot
	Signals   models.ResponseSignals
}

// Question is a generated interviewer message with optional model rationale.
type Question struct {
	Text      string
	Rationale string
}

// QuestionGenerator produces the next interview question.
type QuestionGenerator interface {
	NextQuestion(ctx context.Context, req QuestionRequest) (Question, error)
}

// thinkingClient is the subset of genai.Client used for questions.
type thinkingClient interface {
	GenerateThinkingWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (*genai.ThinkingResponse, error)
}

// LLMQuestionGenerator asks a chat model for the next question.
type LLMQuestionGenerator struct {
	client       thinkingClient
	historyLimit int
}

// NewLLMQuestionGenerator wraps client. A historyLimit <= 0 uses DefaultHistoryLimit.
func NewLLMQuestionGenerator(client thinkingClient, historyLimit int) *LLMQuestionGenerator {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &LLMQuestionGenerator{client: client, historyLimit: historyLimit}
}

// NextQuestion implements QuestionGenerator.
func (g *LLMQuestionGenerator) NextQuestion(ctx context.Context, req QuestionRequest) (Question, error) {
	messages := g.buildMessages(req)
	slog.Debug("LLMQuestionGenerator.NextQuestion: requesting question",
		"sessionID", req.SessionID, "turn", req.TurnCount, "messages", len(messages))

	resp, err := g.client.GenerateThinkingWithMessages(ctx, messages)
	if err != nil {
		return Question{}, err
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return Question{}, ErrEmptyQuestion
	}
	return Question{Text: text, Rationale: strings.TrimSpace(resp.Thinking)}, nil
}

func (g *LLMQuestionGenerator) buildMessages(req QuestionRequest) []openai.ChatCompletionMessageParamUnion {
	history := req.History
	if len(history) > g.historyLimit {
		history = history[len(history)-g.historyLimit:]
	}
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	messages = append(messages, openai.SystemMessage(QuestionPrompt(req)))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		switch m.Role {
		case models.RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case models.RoleAgent:
			messages = append(messages, openai.AssistantMessage(m.Content))
		}
	}
	return messages
}
