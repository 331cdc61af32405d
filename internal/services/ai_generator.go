package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/releasedesk/backend/internal/config"
	"github.com/releasedesk/backend/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

// AIGenerator asks an OpenAI-compatible chat completion endpoint (Groq by default)
// for campaign tasks. It does not fall back on its own; CampaignService does.
type AIGenerator struct {
	client *openai.Client
	model  string
}

func NewAIGenerator(cfg *config.Config) *AIGenerator {
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.OpenAIBaseURL, "/")
	}
	return &AIGenerator{client: openai.NewClientWithConfig(clientCfg), model: cfg.OpenAIModel}
}

const systemPrompt = `You are a music marketing strategist planning release campaigns for independent artists.
You answer with JSON only, no text outside the JSON object.
Every task is one concrete action the artist can finish in a day or less.
Allowed phases: pre-production, production, promotion, distribution.
Allowed categories: content, social, playlist, press, advertising, distribution, planning.
Allowed platforms: instagram, tiktok, youtube, spotify, apple_music, email, press, general.`

const taskJSONShape = `{"tasks": [{"title": "", "description": "", "phase": "", "category": "", "platform": "", "rationale": ""}]}`

func (g *AIGenerator) GenerateInitialStrategy(ctx context.Context, gc GenerationContext) ([]GeneratedTask, error) {
	prompt := fmt.Sprintf("Plan the first %d tasks of the campaign.\n\n%s\nOutput as JSON: %s",
		batchSize(gc), describeContext(gc), taskJSONShape)
	return g.tasks(ctx, prompt, gc)
}

func (g *AIGenerator) GenerateNextTasks(ctx context.Context, gc GenerationContext) ([]GeneratedTask, error) {
	var done strings.Builder
	for _, c := range gc.Completed {
		fmt.Fprintf(&done, "- [%s] %s\n", c.Phase, c.Title)
	}
	prompt := fmt.Sprintf("Plan the next %d tasks. The campaign is in the %s phase.\n\n%s\nAlready completed (most recent first):\n%s\nDo not repeat any task already planned or completed.\nOutput as JSON: %s",
		batchSize(gc), gc.CurrentPhase, describeContext(gc), done.String(), taskJSONShape)
	return g.tasks(ctx, prompt, gc)
}

func (g *AIGenerator) GenerateTaskVariant(ctx context.Context, gc GenerationContext, task models.CampaignTask) (GeneratedTask, error) {
	prompt := fmt.Sprintf("The artist wants a different task instead of this one:\n%q (%s, %s on %s): %s\n\n%s\nPropose exactly one alternative in the same phase.\nOutput as JSON: %s",
		task.Title, task.Phase, task.Category, task.Platform, task.Description, describeContext(gc), taskJSONShape)
	gc.ExistingTitles = append(append([]string(nil), gc.ExistingTitles...), task.Title)
	gc.CurrentPhase = task.Phase
	tasks, err := g.tasks(ctx, prompt, gc)
	if err != nil {
		return GeneratedTask{}, err
	}
	return tasks[0], nil
}

func (g *AIGenerator) tasks(ctx context.Context, prompt string, gc GenerationContext) ([]GeneratedTask, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:    0.7,
		MaxTokens:      1500,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{Service: "task generator", Err: err}
		}
		return nil, &UpstreamError{Service: "task generator", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &UpstreamError{Service: "task generator", Err: errors.New("no choices in response")}
	}

	tasks, err := parseGeneratedTasks(resp.Choices[0].Message.Content, gc)
	if err != nil {
		return nil, &UpstreamError{Service: "task generator", Err: err}
	}
	return tasks, nil
}

// parseGeneratedTasks decodes the model output and keeps the usable tasks.
func parseGeneratedTasks(content string, gc GenerationContext) ([]GeneratedTask, error) {
	var result struct {
		Tasks []GeneratedTask `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	out := filterGenerated(result.Tasks, gc)
	if len(out) == 0 {
		return nil, errors.New("no usable tasks in response")
	}
	return out, nil
}

// extractJSON attempts to extract JSON from a response that may contain extra text
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")

	if start != -1 && end != -1 && end > start {
		return s[start : end+1]
	}
	return s
}

func batchSize(gc GenerationContext) int {
	if gc.BatchSize <= 0 {
		return 3
	}
	return gc.BatchSize
}

func describeContext(gc GenerationContext) string {
	var b strings.Builder
	if r := gc.Release; r != nil {
		fmt.Fprintf(&b, "Release: %q by %s (%s)\n", r.Title, r.ArtistName, r.Type)
	}
	if p := gc.Profile; p != nil {
		song := p.SongIntake.Data()
		fmt.Fprintf(&b, "Genre: %s, mood: %s, themes: %s\n", song.Genre, song.Mood, strings.Join(song.Themes, ", "))
		aud := p.TargetAudience.Data()
		fmt.Fprintf(&b, "Audience: ages %d-%d in %s, active on %s\n", aud.AgeMin, aud.AgeMax, strings.Join(aud.Regions, ", "), strings.Join(aud.Platforms, ", "))
		bt := p.BudgetTimeline.Data()
		fmt.Fprintf(&b, "Budget: %d %s over %d weeks, %d hours per week\n", bt.BudgetAmount, bt.Currency, bt.WeeksOfPromotion, bt.HoursPerWeek)
		goals := p.Goals.Data()
		fmt.Fprintf(&b, "Primary goal: %s\n", goals.Primary)
		if p.CampaignNarrative != "" {
			fmt.Fprintf(&b, "Story: %s\n", p.CampaignNarrative)
		}
	}
	if a := gc.Artist; a != nil {
		fmt.Fprintf(&b, "Artist (%s): %s\n", a.CareerStage, a.Bio)
		if a.BrandAesthetic != "" {
			fmt.Fprintf(&b, "Aesthetic: %s\n", a.BrandAesthetic)
		}
		if len(a.ReferenceArtists) > 0 {
			fmt.Fprintf(&b, "Sounds like: %s\n", strings.Join(a.ReferenceArtists, ", "))
		}
	}
	if len(gc.ExistingTitles) > 0 {
		fmt.Fprintf(&b, "Already planned: %s\n", strings.Join(gc.ExistingTitles, "; "))
	}
	return b.String()
}
