package workspace

import (
	"fmt"

	"github.com/go-git/go-git/v5"
)

// GitInfo summarizes the git state of a workspace root.
type GitInfo struct {
	Branch string `json:"branch,omitempty"` // current branch, empty when detached
	Commit string `json:"commit,omitempty"` // short HEAD hash
	Dirty  int    `json:"dirty"`            // changed or untracked file count
}

// Empty reports whether the summary carries no repository information.
func (g GitInfo) Empty() bool {
	return g.Branch == "" && g.Commit == ""
}

// String renders the summary as a single context-block line, e.g.
// "main@1a2b3c4 (2 dirty)".
func (g GitInfo) String() string {
	if g.Empty() {
		return ""
	}
	label := g.Branch
	if label == "" {
		label = "detached"
	}
	state := "clean"
	if g.Dirty > 0 {
		state = fmt.Sprintf("%d dirty", g.Dirty)
	}
	return fmt.Sprintf("%s@%s (%s)", label, g.Commit, state)
}

// GitSummary inspects root and returns its git summary. Non-git roots,
// empty roots, and any inspection failure degrade to an empty summary,
// never an error.
func GitSummary(root string) GitInfo {
	if root == "" {
		return GitInfo{}
	}

	repo, err := git.PlainOpen(root)
	if err != nil {
		// Not a git repository or can't open
		return GitInfo{}
	}

	head, err := repo.Head()
	if err != nil {
		// No commits yet, bare repo, etc.
		return GitInfo{}
	}

	info := GitInfo{}
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}
	if hash := head.Hash().String(); len(hash) >= 7 {
		info.Commit = hash[:7]
	}

	// Dirty count is best-effort; a status failure leaves it at zero
	if wt, err := repo.Worktree(); err == nil {
		if status, err := wt.Status(); err == nil {
			for _, fs := range status {
				if fs.Worktree != git.Unmodified || fs.Staging != git.Unmodified {
					info.Dirty++
				}
			}
		}
	}

	return info
}
