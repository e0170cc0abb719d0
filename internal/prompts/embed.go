package prompts

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.txt.tmpl
var promptsFS embed.FS

// Template names.
const (
	ProposalSystem = "proposal_system"
	ProposalUser   = "proposal_user"
	RefillUser     = "refill_user"
	Caption        = "caption"
)

// FS returns the embedded templates rooted at the templates directory.
func FS() fs.FS {
	if sub, err := fs.Sub(promptsFS, "templates"); err == nil {
		return sub
	}
	return promptsFS
}
