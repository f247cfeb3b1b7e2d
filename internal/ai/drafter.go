// Package ai drafts assessment questions with an OpenAI-compatible chat model.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/sashabaranov/go-openai"
)

const systemPrompt = `You write workplace skill assessment questions.
Reply with a JSON object {"questions": [...]} and nothing else. Each question has:
"type": one of MCQ, TRUE_FALSE, FILL_BLANK, DESCRIPTIVE;
"prompt": the question text;
"options": 4 short choices for MCQ, omitted otherwise;
"correctAnswer": for MCQ the exact text of one option, for TRUE_FALSE "true" or "false",
for FILL_BLANK the single missing word or phrase, empty for DESCRIPTIVE;
"points": an integer from 1 to 5.`

type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Drafter asks a chat model for question drafts.
type Drafter struct {
	client completer
	model  string
}

// NewDrafter creates a drafter. baseURL may point at any OpenAI-compatible endpoint.
func NewDrafter(apiKey, baseURL, model string) *Drafter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Drafter{client: openai.NewClientWithConfig(cfg), model: model}
}

type draftEnvelope struct {
	Questions []struct {
		Type          string   `json:"type"`
		Prompt        string   `json:"prompt"`
		Options       []string `json:"options"`
		CorrectAnswer string   `json:"correctAnswer"`
		Points        int      `json:"points"`
	} `json:"questions"`
}

// DraftQuestions returns unsaved questions. Callers validate each one before storing it.
func (d *Drafter) DraftQuestions(ctx context.Context, req models.QuestionDraftRequest) ([]models.Question, error) {
	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.4,
	})
	if err != nil {
		return nil, fmt.Errorf("question drafting request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("question drafting returned no choices")
	}
	return parseDrafts(resp.Choices[0].Message.Content)
}

func userPrompt(req models.QuestionDraftRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d questions for the assessment %q.\n", req.Count, req.AssessmentTitle)
	if req.SkillName != "" {
		fmt.Fprintf(&b, "Skill: %s at %s level.\n", req.SkillName, req.TargetLevel)
	} else {
		fmt.Fprintf(&b, "Target level: %s.\n", req.TargetLevel)
	}
	if req.Description != "" {
		fmt.Fprintf(&b, "Context: %s\n", req.Description)
	}
	if len(req.Types) > 0 {
		types := make([]string, len(req.Types))
		for i, t := range req.Types {
			types[i] = string(t)
		}
		fmt.Fprintf(&b, "Only use these types: %s.\n", strings.Join(types, ", "))
	}
	return b.String()
}

// parseDrafts accepts the JSON object reply, tolerating a fenced code block around it.
func parseDrafts(content string) ([]models.Question, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var env draftEnvelope
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &env); err != nil {
		return nil, fmt.Errorf("question drafts are not valid JSON: %w", err)
	}

	questions := make([]models.Question, 0, len(env.Questions))
	for _, q := range env.Questions {
		questions = append(questions, models.Question{
			Type:          models.QuestionType(strings.ToUpper(strings.TrimSpace(q.Type))),
			Prompt:        strings.TrimSpace(q.Prompt),
			Options:       q.Options,
			CorrectAnswer: strings.TrimSpace(q.CorrectAnswer),
			Points:        q.Points,
		})
	}
	return questions, nil
}
