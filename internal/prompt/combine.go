package prompt

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/srlee0408/voguedrop-sub005/internal/domain"
)

// MaxLength bounds the combined prompt sent to the vendor.
const MaxLength = 2000

var folder = cases.Fold()

// Combine merges the user's prompt with the selected effects' prompt
// fragments into the final generation prompt. Fragments that case-fold to an
// already-included part are dropped so stacking effects never repeats text.
// An empty combined prompt is invalid.
func Combine(userPrompt string, effects []domain.Effect) (string, error) {
	parts := make([]string, 0, 1+len(effects))
	seen := make(map[string]struct{}, 1+len(effects))

	appendPart := func(raw string) {
		part := strings.TrimSpace(raw)
		if part == "" {
			return
		}
		key := folder.String(part)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		parts = append(parts, part)
	}

	appendPart(userPrompt)
	for _, effect := range effects {
		appendPart(effect.Prompt)
	}

	if len(parts) == 0 {
		return "", domain.ErrInvalidPrompt
	}

	combined := strings.Join(parts, ", ")
	if len(combined) > MaxLength {
		return "", domain.ErrInvalidPrompt
	}
	return combined, nil
}

// DisplayName renders an effect name for logs and UI fallbacks.
func DisplayName(name string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(name))
}
