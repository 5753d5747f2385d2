// Package suggest asks a language model for categories of the labels the
// classifier could not place. Suggestions are advisory: nothing is applied
// until a user learns them as overrides.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/logger"
)

// DefaultMaxLabels caps the labels sent in a single prompt.
const DefaultMaxLabels = 200

// Model generates a text completion for a prompt.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Suggestion is a proposed category for a normalized label.
type Suggestion struct {
	NormalizedLabel string  `json:"label"`
	Category        string  `json:"category"`
	Confidence      float64 `json:"confidence"`
	// Occurrences is the number of uncategorized rows carrying the label.
	Occurrences int `json:"occurrences"`
}

// Suggester builds prompts from uncategorized transactions and validates
// the answers against the allowed categories.
type Suggester struct {
	Model      Model
	Categories []string
	MaxLabels  int
}

// Pending returns the distinct normalized labels of the owner's rows that
// are still uncategorized, with their number of occurrences.
func Pending(owner string, txs []domain.Transaction) map[string]int {
	out := make(map[string]int)
	for _, tx := range txs {
		if tx.Owner != owner {
			continue
		}
		if tx.Category != "" && tx.Category != domain.CategoryUncategorized {
			continue
		}
		label := tx.NormalizedLabel
		if label == "" || label == domain.UnknownLabel {
			continue
		}
		out[label]++
	}
	return out
}

// Suggest asks the model about every pending label of owner. Answers naming
// an unknown category or a label that was not asked about are dropped.
func (s *Suggester) Suggest(ctx context.Context, owner string, txs []domain.Transaction) ([]Suggestion, error) {
	log := logger.FromContext(ctx)

	pending := Pending(owner, txs)
	if len(pending) == 0 {
		return nil, nil
	}
	if len(s.Categories) == 0 {
		return nil, fmt.Errorf("Suggest: no categories to choose from")
	}

	labels := make([]string, 0, len(pending))
	for l := range pending {
		labels = append(labels, l)
	}
	// Most frequent labels first, so the cap drops the rare ones.
	sort.Slice(labels, func(i, j int) bool {
		if pending[labels[i]] != pending[labels[j]] {
			return pending[labels[i]] > pending[labels[j]]
		}
		return labels[i] < labels[j]
	})
	limit := s.MaxLabels
	if limit <= 0 {
		limit = DefaultMaxLabels
	}
	if len(labels) > limit {
		log.Warn().Int("pending", len(labels)).Int("max", limit).Msg("Too many uncategorized labels, asking about the most frequent")
		labels = labels[:limit]
	}

	raw, err := s.Model.Generate(ctx, BuildPrompt(s.Categories, labels))
	if err != nil {
		return nil, fmt.Errorf("Suggest: generate: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("Suggest: empty response from model")
	}

	var answers []Suggestion
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &answers); err != nil {
		return nil, fmt.Errorf("Suggest: unmarshal JSON: %w", err)
	}

	allowed := make(map[string]string, len(s.Categories))
	for _, c := range s.Categories {
		allowed[strings.ToLower(c)] = c
	}
	asked := make(map[string]bool, len(labels))
	for _, l := range labels {
		asked[l] = true
	}

	seen := make(map[string]bool)
	var out []Suggestion
	for _, a := range answers {
		category, ok := allowed[strings.ToLower(strings.TrimSpace(a.Category))]
		if !ok || !asked[a.NormalizedLabel] || seen[a.NormalizedLabel] {
			log.Debug().Str("label", a.NormalizedLabel).Str("category", a.Category).Msg("Dropping suggestion")
			continue
		}
		seen[a.NormalizedLabel] = true
		a.Category = category
		if a.Confidence < 0 {
			a.Confidence = 0
		}
		if a.Confidence > 1 {
			a.Confidence = 1
		}
		a.Occurrences = pending[a.NormalizedLabel]
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].NormalizedLabel < out[j].NormalizedLabel })

	log.Info().
		Str("owner", owner).
		Int("asked", len(labels)).
		Int("suggested", len(out)).
		Msg("Category suggestions received")
	return out, nil
}

// BuildPrompt renders the instructions for a batch of labels.
func BuildPrompt(categories, labels []string) string {
	var b strings.Builder
	b.WriteString("You categorize bank transaction labels for a personal ledger.\n\n")
	b.WriteString("Allowed categories:\n")
	for _, c := range categories {
		b.WriteString("- " + c + "\n")
	}
	b.WriteString("\nLabels:\n")
	for _, l := range labels {
		b.WriteString("- " + l + "\n")
	}
	b.WriteString("\nRules:\n" +
		"- Pick exactly one allowed category per label, or skip the label if none fits.\n" +
		"- Never invent categories.\n" +
		"- Output STRICT JSON only: an array of objects with fields\n" +
		"  \"label\" (string, copied verbatim), \"category\" (string), \"confidence\" (number 0..1).\n" +
		"Do NOT wrap the response in code fences.\n" +
		"Output must begin with \"[\" and end with \"]\".\n")
	return b.String()
}

// cleanModelJSON strips Markdown fences and any text around the JSON array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
