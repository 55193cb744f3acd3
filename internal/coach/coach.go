// Package coach wraps the LLM chat endpoint behind a narrow dialogue
// interface. Responses are best-effort commentary: any failure degrades to a
// canned motivational line, and nothing here ever drives the workout state
// machine.
package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/session"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// DataSource gives the coach read access to the training database for its
// function tools.
type DataSource interface {
	GetExerciseHistory(ctx context.Context, userID int, exerciseName string) (*models.ExerciseHistory, error)
	GetRecentSessions(ctx context.Context, userID, limit int) ([]models.SessionRow, error)
	GetPersonalRecords(ctx context.Context, userID int) ([]models.PersonalRecord, error)
	GetStats(ctx context.Context, userID int) (*models.UserStats, error)
}

const systemPrompt = `You are Coach Alex, an AI personal trainer guiding a user
through a strength workout in real time.

Your role:
- Give short technique cues and motivation during the workout.
- Suggest weights based on the user's training history.
- Celebrate progress and personal records.

Style: messages must be VERY short (1-2 sentences) because the user reads them
on a gym monitor mid-workout. Be energetic and direct.

You can call functions to look up the user's exercise history, recent
sessions, personal records, and overall stats.`

// maxToolRounds bounds the tool-call loop per reaction.
const maxToolRounds = 3

// historyWindow is how many prior exchanges are replayed for continuity.
const historyWindow = 10

// Client talks to an OpenAI-compatible chat endpoint. It satisfies
// session.Coach.
type Client struct {
	api    openai.Client
	model  string
	ds     DataSource
	userID int
	log    *slog.Logger

	mu      sync.Mutex
	history []openai.ChatCompletionMessageParamUnion
}

// New creates a coach client. baseURL may be empty for api.openai.com.
func New(apiKey, baseURL, model string, ds DataSource, userID int, log *slog.Logger) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{
		api:    openai.NewClient(opts...),
		model:  model,
		ds:     ds,
		userID: userID,
		log:    log,
	}
}

var _ session.Coach = (*Client)(nil)

// React produces a short reaction to a workout event. On any failure it
// returns a canned line instead of an error, so the workout flow never
// notices a coach outage.
func (c *Client) React(ctx context.Context, ev session.CoachEvent) (string, error) {
	msg, err := c.Chat(ctx, eventPrompt(ev))
	if err != nil {
		c.log.Warn("coach unavailable, using fallback", "event", ev.Kind, "error", err)
		return fallbackLine(ev.Kind), nil
	}
	return msg, nil
}

// Chat sends a free-form message with the rolling conversation history and
// resolves tool calls against the training database.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	c.mu.Lock()
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(c.history)+2)
	messages = append(messages, openai.SystemMessage(systemPrompt))
	messages = append(messages, c.history...)
	messages = append(messages, openai.UserMessage(message))
	c.mu.Unlock()

	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
		Tools:    toolDefinitions(),
	}

	var reply string
	for round := 0; ; round++ {
		completion, err := c.api.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}
		if len(completion.Choices) == 0 {
			return "", fmt.Errorf("chat completion: empty response")
		}

		choice := completion.Choices[0].Message
		if len(choice.ToolCalls) == 0 || round >= maxToolRounds {
			reply = choice.Content
			break
		}

		params.Messages = append(params.Messages, choice.ToParam())
		for _, tc := range choice.ToolCalls {
			result := c.runTool(ctx, tc.Function.Name, tc.Function.Arguments)
			params.Messages = append(params.Messages, openai.ToolMessage(result, tc.ID))
		}
	}

	c.mu.Lock()
	c.history = append(c.history, openai.UserMessage(message), openai.AssistantMessage(reply))
	if len(c.history) > historyWindow*2 {
		c.history = c.history[len(c.history)-historyWindow*2:]
	}
	c.mu.Unlock()

	return reply, nil
}

// Reset drops the conversation history (new workout, new conversation).
func (c *Client) Reset() {
	c.mu.Lock()
	c.history = nil
	c.mu.Unlock()
}

// runTool executes one tool call. Errors are reported back to the model as
// JSON so it can recover in its answer.
func (c *Client) runTool(ctx context.Context, name, rawArgs string) string {
	var args struct {
		ExerciseName string `json:"exercise_name"`
		Limit        int    `json:"limit"`
	}
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return toolError(fmt.Errorf("parsing arguments: %w", err))
		}
	}

	var (
		result any
		err    error
	)
	switch name {
	case "get_exercise_stats":
		result, err = c.ds.GetExerciseHistory(ctx, c.userID, args.ExerciseName)
	case "get_recent_sessions":
		limit := args.Limit
		if limit <= 0 {
			limit = 10
		}
		result, err = c.ds.GetRecentSessions(ctx, c.userID, limit)
	case "get_personal_records":
		result, err = c.ds.GetPersonalRecords(ctx, c.userID)
	case "get_stats":
		result, err = c.ds.GetStats(ctx, c.userID)
	default:
		err = fmt.Errorf("unknown tool %q", name)
	}
	if err != nil {
		c.log.Warn("coach tool failed", "tool", name, "error", err)
		return toolError(err)
	}

	out, err := json.Marshal(result)
	if err != nil {
		return toolError(err)
	}
	return string(out)
}

func toolError(err error) string {
	out, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(out)
}

func toolDefinitions() []openai.ChatCompletionToolUnionParam {
	return []openai.ChatCompletionToolUnionParam{
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "get_exercise_stats",
			Description: openai.String("History and personal record for a specific exercise"),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"exercise_name": map[string]any{
						"type":        "string",
						"description": "Exercise name as shown in the workout",
					},
				},
				"required": []string{"exercise_name"},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "get_recent_sessions",
			Description: openai.String("The user's most recent workout sessions"),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum sessions to return (default 10)",
					},
				},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "get_personal_records",
			Description: openai.String("All personal records (max weight, max reps, estimated 1RM)"),
			Parameters: openai.FunctionParameters{
				"type":       "object",
				"properties": map[string]any{},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "get_stats",
			Description: openai.String("Aggregate workout statistics: totals, streaks, last workout"),
			Parameters: openai.FunctionParameters{
				"type":       "object",
				"properties": map[string]any{},
			},
		}),
	}
}
