// Package generator produces video metadata with an Anthropic model.
package generator

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"

	"daily_publisher/internal/config"
	"daily_publisher/internal/domain"
)

const (
	maxTitleRunes = 95
	maxTags       = 15
)

//go:embed prompts/system.md
var systemPromptTemplate string

//go:embed prompts/user.md
var userPromptTemplate string

//go:embed prompts/schema.json
var outputSchema string

const chaptersRequirement = `- the description must include a chapter list with "0:00" timestamps`

// completeFunc sends one structured-output prompt and returns the raw text.
type completeFunc func(systemPrompt, userPrompt, schema string) (string, error)

type Generator struct {
	complete completeFunc
	logger   *slog.Logger
}

func New(cfg config.GeneratorConfig, logger *slog.Logger) *Generator {
	settings := types.RequestSettings{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
	apiKey := cfg.APIKey

	return &Generator{
		complete: func(systemPrompt, userPrompt, schema string) (string, error) {
			response, err := anthropic.PromptWithSettings(systemPrompt, userPrompt, schema, apiKey, settings)
			if err != nil {
				return "", err
			}
			if len(response.Content) == 0 {
				return "", errors.New("no content in response")
			}
			return response.Content[0].Text, nil
		},
		logger: logger.With("component", "generator"),
	}
}

func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.Metadata, error) {
	systemPrompt, userPrompt := buildPrompts(req)

	type reply struct {
		text string
		err  error
	}
	// llmkit takes no context and builds its own http.Client without a
	// timeout, so on deadline the call is abandoned, not cancelled. The
	// goroutine lives until the provider answers; each run abandons at most
	// one call.
	done := make(chan reply, 1)
	go func() {
		text, err := g.complete(systemPrompt, userPrompt, outputSchema)
		done <- reply{text: text, err: err}
	}()

	var text string
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", domain.ErrTimeout, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, r.err)
		}
		text = r.text
	}

	metadata, err := parse(text)
	if err != nil {
		g.logger.Warn("unusable model response", "error", err, "response", truncate(text, 200))
		return nil, err
	}

	g.logger.Debug("metadata generated", "title", metadata.Title, "tags", len(metadata.Tags))
	return metadata, nil
}

func buildPrompts(req domain.GenerationRequest) (string, string) {
	systemPrompt := strings.ReplaceAll(systemPromptTemplate, "{{.context}}", strings.TrimSpace(req.Context))

	recent := "None"
	if len(req.RecentTitles) > 0 {
		recent = "- " + strings.Join(req.RecentTitles, "\n- ")
	}
	chapters := ""
	if req.IncludeChapters {
		chapters = chaptersRequirement
	}

	userPrompt := strings.ReplaceAll(userPromptTemplate, "{{.recent_titles}}", recent)
	userPrompt = strings.ReplaceAll(userPrompt, "{{.chapters}}", chapters)
	return systemPrompt, strings.TrimSpace(userPrompt)
}

func parse(text string) (*domain.Metadata, error) {
	text = stripFence(strings.TrimSpace(text))

	var metadata domain.Metadata
	if err := json.Unmarshal([]byte(text), &metadata); err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", domain.ErrGenerationFailed, err)
	}

	metadata.Title = truncateRunes(strings.TrimSpace(metadata.Title), maxTitleRunes)
	if metadata.Title == "" {
		return nil, fmt.Errorf("%w: response has no title", domain.ErrGenerationFailed)
	}
	metadata.Description = strings.TrimSpace(metadata.Description)
	metadata.Tags = normalizeTags(metadata.Tags)
	return &metadata, nil
}

// normalizeTags trims, lowercases and de-duplicates tags, keeping the first
// maxTags in order.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
