// Package models knows which upscaling models mangaup can drive, where they
// live under the tool home and how to install them.
package models

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

// DefaultModel is used when no --model is given.
const DefaultModel = "waifu2x"

// Model describes one selectable model. All current models are served by
// waifu2x-ncnn-vulkan and differ only in the weights directory.
type Model struct {
	Name        string
	Description string
	Scale       int
	Subdir      string // Directory under models/waifu2x/ holding the weights.
}

var registry = map[string]Model{
	"waifu2x": {
		Name:        "waifu2x",
		Description: "Waifu2x x2 (fast, line-art focused)",
		Scale:       2,
		Subdir:      "models-cunet",
	},
	"waifu2x-anime": {
		Name:        "waifu2x-anime",
		Description: "Waifu2x x2 upconv7 anime style art",
		Scale:       2,
		Subdir:      "models-upconv_7_anime_style_art_rgb",
	},
	"waifu2x-photo": {
		Name:        "waifu2x-photo",
		Description: "Waifu2x x2 upconv7 photo",
		Scale:       2,
		Subdir:      "models-upconv_7_photo",
	},
}

// minSuggestScore is the Jaro-Winkler similarity below which no
// suggestion is offered.
const minSuggestScore = 0.7

// UnknownModelError is returned by [Lookup] for names not in the registry.
type UnknownModelError struct {
	Name       string
	Suggestion string // Closest known name, or "".
}

func (e *UnknownModelError) Error() string {
	msg := fmt.Sprintf("unknown model %q", e.Name)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg + "; available: " + strings.Join(Names(), ", ")
}

// All returns every registered model sorted by name.
func All() []Model {
	out := make([]Model, 0, len(registry))
	for _, m := range registry {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered model names in sorted order.
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, m := range all {
		names[i] = m.Name
	}
	return names
}

// Lookup returns the model registered under name (case-insensitive).
func Lookup(name string) (Model, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if m, ok := registry[key]; ok {
		return m, nil
	}
	return Model{}, &UnknownModelError{Name: name, Suggestion: suggest(key)}
}

func suggest(name string) string {
	if name == "" {
		return ""
	}
	best, bestScore := "", float32(0)
	for _, candidate := range Names() {
		score := edlib.JaroWinklerSimilarity(name, candidate)
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	if bestScore < minSuggestScore {
		return ""
	}
	return best
}
