// Package detection turns raw detector output into a ranked ingredient list.
package detection

import (
	"sort"
	"strings"

	"github.com/franckalain/smartplate/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MinScore is the confidence floor; detections scoring below it are noise.
const MinScore = 0.35

// Canonical maps a detector label to its lowercase vocabulary name.
func Canonical(label string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(label))
}

// Filter keeps food detections at or above MinScore, collapses duplicate names
// to their best score and orders the result by descending score.
func Filter(detections []models.Detection) []models.Ingredient {
	best := make(map[string]int, len(detections))
	out := make([]models.Ingredient, 0, len(detections))

	for _, d := range detections {
		if d.Score < MinScore {
			continue
		}
		name := Canonical(d.Label)
		if !IsFood(name) {
			continue
		}
		if i, seen := best[name]; seen {
			if d.Score > out[i].Score {
				out[i].Score = d.Score
			}
			continue
		}
		best[name] = len(out)
		out = append(out, models.Ingredient{Name: name, Score: d.Score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// MaxScore returns the highest ingredient score, or 0 for an empty list.
func MaxScore(ingredients []models.Ingredient) float64 {
	var max float64
	for _, ing := range ingredients {
		if ing.Score > max {
			max = ing.Score
		}
	}
	return max
}
