package shelflife

import (
	"strings"
	"unicode"
)

// DefaultShelfLifeDays applies to food items missing from the default table.
const DefaultShelfLifeDays = 7

const genericStorageAdvice = "Store in a cool, dry place and check for signs of spoilage before use."

const fallbackStorageAdvice = "Shelf life estimated from typical values. Store appropriately and check before use."

// searchCategories maps detector food names to product database search terms.
var searchCategories = map[string]string{
	"banana":     "bananas",
	"apple":      "apples",
	"orange":     "oranges",
	"broccoli":   "broccoli",
	"carrot":     "carrots",
	"pizza":      "pizzas",
	"donut":      "donuts",
	"sandwich":   "sandwiches",
	"hot dog":    "hot-dogs",
	"bottle":     "beverages",
	"wine glass": "wines",
	"cup":        "yogurts",
	"bowl":       "prepared-meals",
	"cake":       "cakes",
}

// defaultShelfLife holds typical shelf life in days for each food item.
var defaultShelfLife = map[string]int{
	"banana":     7,
	"apple":      30,
	"orange":     21,
	"broccoli":   7,
	"carrot":     21,
	"pizza":      4,
	"donut":      3,
	"sandwich":   2,
	"hot dog":    7,
	"bottle":     365,
	"wine glass": 1095,
	"cup":        10,
	"bowl":       4,
	"cake":       5,
}

// CategoryFor returns the search term for a food item, or the item itself.
func CategoryFor(foodItem string) string {
	if c, ok := searchCategories[foodItem]; ok {
		return c
	}
	return foodItem
}

// DefaultDays returns the table value for a food item, or DefaultShelfLifeDays.
func DefaultDays(foodItem string) int {
	if d, ok := defaultShelfLife[foodItem]; ok {
		return d
	}
	return DefaultShelfLifeDays
}

type keywordGroup struct {
	name     string
	keywords []string
	days     int
	advice   string
}

// keywordGroups is matched in order; the first group with a keyword hit wins.
var keywordGroups = []keywordGroup{
	{
		name:     "dairy",
		keywords: []string{"dairy", "dairies", "milk", "cheese", "yogurt", "yoghurt", "cream", "butter"},
		days:     7,
		advice:   "Keep refrigerated between 1°C and 4°C and reseal after opening.",
	},
	{
		name:     "meat",
		keywords: []string{"meat", "poultry", "chicken", "beef", "pork", "sausage", "ham", "fish", "seafood"},
		days:     3,
		advice:   "Keep refrigerated below 4°C and cook or freeze within a few days.",
	},
	{
		name:     "bakery",
		keywords: []string{"bakery", "bread", "pastry", "pastries", "cake", "biscuit", "donut", "doughnut"},
		days:     5,
		advice:   "Store in a sealed container at room temperature away from sunlight.",
	},
	{
		name:     "produce",
		keywords: []string{"fruit", "vegetable", "produce", "fresh"},
		days:     14,
		advice:   "Store in the crisper drawer; keep ethylene-producing fruit apart from vegetables.",
	},
	{
		name:     "preserved",
		keywords: []string{"canned", "preserved", "preserve", "conserve", "pickled", "dried"},
		days:     365,
		advice:   "Store unopened in a cupboard; refrigerate after opening.",
	},
}

var defaultGroup = keywordGroup{
	name:   "default",
	days:   30,
	advice: genericStorageAdvice,
}

// classify matches keywords against the start of each word in the category
// text, so "sausages" hits "sausage" but "champagnes" does not hit "ham".
func classify(categories string) keywordGroup {
	words := strings.FieldsFunc(strings.ToLower(categories), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, g := range keywordGroups {
		for _, kw := range g.keywords {
			for _, w := range words {
				if strings.HasPrefix(w, kw) {
					return g
				}
			}
		}
	}
	return defaultGroup
}
