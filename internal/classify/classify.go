// Package classify maps free-text task descriptions to work categories.
// Classification is a deliberately simple, explainable keyword rule table:
// deterministic, side-effect-free, and total (every input gets a category).
package classify

import (
	"strings"

	"branchpilot/pkg/models"
)

// CategoryKeywords is the single source of truth for classification keywords.
// Rules are checked in order and the first match wins. Setup and bug-fix are
// checked first because their keywords can co-occur with feature-sounding
// text, and getting setup and bug work scheduled early drives the dependency
// construction downstream.
type CategoryKeywords struct {
	// Setup keywords indicate scaffolding and initialization work.
	Setup []string
	// BugFix keywords indicate defect repair.
	BugFix []string
	// Test keywords indicate test and coverage work.
	Test []string
	// Docs keywords indicate documentation work.
	Docs []string
	// Optimization keywords indicate refactoring and performance work.
	Optimization []string

	// Feature has no keywords: any description that matches nothing
	// above is a feature.
}

// DefaultKeywords returns the authoritative keyword mappings.
var DefaultKeywords = CategoryKeywords{
	Setup: []string{
		"create",
		"initialize",
		"setup",
		"scaffold",
	},
	BugFix: []string{
		"fix",
		"bug",
		"resolve",
		"repair",
	},
	Test: []string{
		"test",
		"coverage",
		"spec",
	},
	Docs: []string{
		"document",
		"readme",
		"docs",
		"comment",
	},
	Optimization: []string{
		"optimiz",
		"refactor",
		"improve",
		"enhance",
		"performance",
	},
}

// rule pairs a category with its keyword list, in match-priority order.
type rule struct {
	category models.Category
	keywords []string
}

// orderedRules returns the rule table in match-priority order.
func (k CategoryKeywords) orderedRules() []rule {
	return []rule{
		{models.CategorySetup, k.Setup},
		{models.CategoryBugFix, k.BugFix},
		{models.CategoryTest, k.Test},
		{models.CategoryDocs, k.Docs},
		{models.CategoryOptimization, k.Optimization},
	}
}

// Classification holds a category selection with matching details.
type Classification struct {
	// Category is the selected category.
	Category models.Category
	// MatchedKeyword is the keyword that triggered the selection, empty
	// when the description fell through to the feature default.
	MatchedKeyword string
}

// ClassifyWithMatch returns the category for a description along with the
// keyword that decided it. Matching is case-insensitive substring matching.
func ClassifyWithMatch(description string) Classification {
	lower := strings.ToLower(description)

	for _, r := range DefaultKeywords.orderedRules() {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return Classification{Category: r.category, MatchedKeyword: kw}
			}
		}
	}

	return Classification{Category: models.CategoryFeature}
}

// Classify returns just the category for a task description.
func Classify(description string) models.Category {
	return ClassifyWithMatch(description).Category
}
