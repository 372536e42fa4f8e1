// Package resume inventories existing non-mainline workspaces at startup
// and decides which are eligible for automatic resumption. This is
// advisory bookkeeping: resumption re-admits a workspace into the same
// dispatch machinery.
package resume

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"branchpilot/internal/git"
	"branchpilot/pkg/models"
)

// DefaultRecencyWindow is how far back a workspace's last activity may
// be while still qualifying for automatic resumption.
const DefaultRecencyWindow = 7 * 24 * time.Hour

// categoryByPrefix maps branch name prefixes back to their category.
var categoryByPrefix = map[string]models.Category{
	"setup/":    models.CategorySetup,
	"feature/":  models.CategoryFeature,
	"bugfix/":   models.CategoryBugFix,
	"test/":     models.CategoryTest,
	"docs/":     models.CategoryDocs,
	"optimize/": models.CategoryOptimization,
}

// WorkspaceInfo describes one existing non-mainline workspace.
type WorkspaceInfo struct {
	// Name is the full branch name.
	Name string
	// Category is inferred from the name prefix; empty when no known
	// prefix matches.
	Category models.Category
	// Intent is the name with the category prefix stripped.
	Intent string
	// LastActivity is the committer time of the branch tip.
	LastActivity time.Time
	// Resumable reports whether the workspace qualifies for automatic
	// resumption: known prefix and recent activity.
	Resumable bool
}

// Scanner inventories non-mainline branches.
type Scanner struct {
	git      git.BranchOperations
	mainline string
	window   time.Duration
	now      func() time.Time
}

// New creates a scanner. window <= 0 selects DefaultRecencyWindow.
func New(gitOps git.BranchOperations, mainline string, window time.Duration) *Scanner {
	if window <= 0 {
		window = DefaultRecencyWindow
	}
	return &Scanner{
		git:      gitOps,
		mainline: mainline,
		window:   window,
		now:      time.Now,
	}
}

// Scan enumerates every non-mainline branch, infers intent from its
// name, and marks each resumable or not. Results are sorted by most
// recent activity first.
func (s *Scanner) Scan() ([]*WorkspaceInfo, error) {
	branches, err := s.git.ListBranches()
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}

	cutoff := s.now().Add(-s.window)

	var infos []*WorkspaceInfo
	for _, branch := range branches {
		if branch == s.mainline {
			continue
		}

		lastActivity, err := s.git.LastCommitTime(branch)
		if err != nil {
			return nil, fmt.Errorf("last commit time for %s: %w", branch, err)
		}

		category, intent, known := splitIntent(branch)
		infos = append(infos, &WorkspaceInfo{
			Name:         branch,
			Category:     category,
			Intent:       intent,
			LastActivity: lastActivity,
			Resumable:    known && lastActivity.After(cutoff),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].LastActivity.Equal(infos[j].LastActivity) {
			return infos[i].LastActivity.After(infos[j].LastActivity)
		}
		return infos[i].Name < infos[j].Name
	})
	return infos, nil
}

// Resumable returns only the workspaces eligible for automatic resumption.
func (s *Scanner) Resumable() ([]*WorkspaceInfo, error) {
	infos, err := s.Scan()
	if err != nil {
		return nil, err
	}

	var out []*WorkspaceInfo
	for _, info := range infos {
		if info.Resumable {
			out = append(out, info)
		}
	}
	return out, nil
}

// splitIntent strips a known category prefix from a branch name.
// known is false when the name follows no recognized convention.
func splitIntent(branch string) (category models.Category, intent string, known bool) {
	for prefix, cat := range categoryByPrefix {
		if strings.HasPrefix(branch, prefix) {
			return cat, strings.TrimPrefix(branch, prefix), true
		}
	}
	return "", branch, false
}
