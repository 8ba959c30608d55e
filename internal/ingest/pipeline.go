// Package ingest turns free-form user text into a structured task draft.
// The pipeline tries the AI categorization service first and falls through
// a heuristic tier and a raw tier, so processing never fails from the
// caller's point of view.
package ingest

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Utre17/tasksmart/internal/models"
)

const (
	maxTitleLen   = 80
	maxSummaryLen = 140
)

// Categorizer converts raw text into a structured suggestion. Implemented
// by the AI service client; a nil categorizer disables the AI tier.
type Categorizer interface {
	Categorize(ctx context.Context, text string) (Suggestion, error)
}

// Summarizer shortens raw text. Implemented by the AI service client.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (Summary, error)
}

// Pipeline runs the tiered ingestion chain.
type Pipeline struct {
	categorizer Categorizer
	summarizer  Summarizer
	logger      *slog.Logger
}

// New constructs a pipeline. Either service may be nil; the corresponding
// AI tier is then skipped and the local tiers take over directly, which is
// how guest mode runs.
func New(categorizer Categorizer, summarizer Summarizer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{categorizer: categorizer, summarizer: summarizer, logger: logger}
}

// tierResult carries the outcome of one tier attempt. Fallbacks are data,
// not panics: a failed tier yields ok=false with a reason and the chain
// moves on.
type tierResult struct {
	draft  models.Draft
	ok     bool
	reason string
}

// Process converts raw text into a valid, fully populated draft. It never
// returns an error: the heuristic and raw tiers have no external
// dependencies and always produce a member of the enumerated sets.
func (p *Pipeline) Process(ctx context.Context, rawText string) models.Draft {
	rawText = strings.TrimSpace(rawText)
	if rawText == "" {
		return models.Draft{Title: "Untitled task", Category: models.CategoryPersonal, Priority: models.PriorityMedium}
	}

	if p.categorizer != nil {
		res := p.aiTier(ctx, rawText)
		if res.ok {
			p.logger.Info("ai categorization used",
				slog.Int("input_len", len(rawText)),
				slog.String("category", string(res.draft.Category)))
			return res.draft
		}
		p.logger.Warn("ai tier failed, falling back", slog.String("reason", res.reason))
	}

	return p.heuristicTier(rawText).draft
}

// aiTier asks the categorization service and validates its answer against
// the enumerated sets. Any shape deviation fails the tier without retry.
func (p *Pipeline) aiTier(ctx context.Context, rawText string) tierResult {
	suggestion, err := p.categorizer.Categorize(ctx, rawText)
	if err != nil {
		return tierResult{reason: err.Error()}
	}

	title := strings.TrimSpace(suggestion.Title)
	if title == "" {
		return tierResult{reason: "missing title"}
	}
	category, ok := models.ParseCategory(suggestion.Category)
	if !ok {
		return tierResult{reason: "category outside enumerated set: " + suggestion.Category}
	}
	priority, ok := models.ParsePriority(suggestion.Priority)
	if !ok {
		return tierResult{reason: "priority outside enumerated set: " + suggestion.Priority}
	}

	return tierResult{
		ok: true,
		draft: models.Draft{
			Title:    truncate(title, maxTitleLen),
			Category: category,
			Priority: priority,
			DueDate:  strings.TrimSpace(suggestion.DueDate),
			Notes:    strings.TrimSpace(suggestion.Notes),
		},
	}
}

// heuristicTier matches the lowercased text against known phrase tables.
// It has no external dependency and always succeeds.
func (p *Pipeline) heuristicTier(rawText string) tierResult {
	return tierResult{
		ok: true,
		draft: models.Draft{
			Title:    truncate(firstLine(rawText), maxTitleLen),
			Category: guessCategory(rawText),
			Priority: guessPriority(rawText),
		},
	}
}

// RawDraft is the last-resort conversion: bounded title, Personal/Medium
// defaults, no text analysis at all.
func RawDraft(rawText string) models.Draft {
	rawText = strings.TrimSpace(rawText)
	if rawText == "" {
		rawText = "Untitled task"
	}
	return models.Draft{
		Title:    truncate(firstLine(rawText), maxTitleLen),
		Category: models.CategoryPersonal,
		Priority: models.PriorityMedium,
	}
}

// Summarize shortens text through its own two-tier chain: AI summary first,
// plain truncation as the fallback. Independent of Process.
func (p *Pipeline) Summarize(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	if p.summarizer != nil {
		summary, err := p.summarizer.Summarize(ctx, text)
		if err == nil && strings.TrimSpace(summary.Text) != "" {
			return strings.TrimSpace(summary.Text)
		}
		if err != nil {
			p.logger.Warn("summarization tier failed, truncating", slog.String("reason", err.Error()))
		}
	}
	return truncate(text, maxSummaryLen)
}

var categoryPhrases = []struct {
	category models.Category
	phrases  []string
}{
	{models.CategoryWork, []string{
		"meeting", "report", "deadline", "presentation", "client", "boss",
		"email", "call", "reply", "follow up", "standup", "review", "project",
	}},
	{models.CategoryShopping, []string{
		"buy", "purchase", "order", "grocery", "groceries", "shop", "store", "pick up",
	}},
	{models.CategoryFinance, []string{
		"pay", "bill", "bills", "bank", "rent", "invoice", "tax", "taxes", "budget",
	}},
	{models.CategoryHealth, []string{
		"doctor", "dentist", "gym", "workout", "medicine", "appointment", "prescription",
	}},
	{models.CategoryPersonal, []string{
		"clean", "laundry", "fix", "repair", "home", "house", "cook", "dishes",
	}},
}

var highPriorityPhrases = []string{
	"urgent", "asap", "immediately", "critical", "right away", "today", "important",
}

var lowPriorityPhrases = []string{
	"someday", "eventually", "whenever", "no rush", "low priority", "sometime",
}

func guessCategory(rawText string) models.Category {
	lowered := strings.ToLower(rawText)
	for _, entry := range categoryPhrases {
		for _, phrase := range entry.phrases {
			if strings.Contains(lowered, phrase) {
				return entry.category
			}
		}
	}
	return models.CategoryPersonal
}

func guessPriority(rawText string) models.Priority {
	lowered := strings.ToLower(rawText)
	for _, phrase := range highPriorityPhrases {
		if strings.Contains(lowered, phrase) {
			return models.PriorityHigh
		}
	}
	for _, phrase := range lowPriorityPhrases {
		if strings.Contains(lowered, phrase) {
			return models.PriorityLow
		}
	}
	return models.PriorityMedium
}

func firstLine(text string) string {
	if idx := strings.IndexAny(text, "\r\n"); idx >= 0 {
		return strings.TrimSpace(text[:idx])
	}
	return text
}

func truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:max-3])) + "..."
}
