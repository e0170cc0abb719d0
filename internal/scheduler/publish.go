package scheduler

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
)

var reGitHubRemote = regexp.MustCompile(`github\.com[:/]([^/]+)/(.+?)(?:\.git)?$`)

// GitPublisher commits the docs directory and pushes it.
type GitPublisher struct {
	RepoDir string
	DocsDir string // relative to RepoDir
	Remote  string
	Branch  string
	Log     *logging.Logger

	// run executes one git command; nil uses the git binary.
	run func(ctx context.Context, dir string, args ...string) ([]byte, error)
	now func() time.Time
}

func runGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Publish stages, commits and pushes the docs directory, then returns the
// Pages URL derived from the remote, or "" when it is not a GitHub remote.
func (p *GitPublisher) Publish(ctx context.Context, ids []string) (string, error) {
	run := p.run
	if run == nil {
		run = runGit
	}
	now := p.now
	if now == nil {
		now = time.Now
	}
	remote, branch, docs := p.Remote, p.Branch, p.DocsDir
	if remote == "" {
		remote = "origin"
	}
	if branch == "" {
		branch = "main"
	}
	if docs == "" {
		docs = "docs"
	}

	msg := fmt.Sprintf("batch: %s (%s)", strings.Join(ids, ", "), now().Format("2006-01-02"))
	steps := [][]string{
		{"add", docs + "/"},
		{"commit", "-m", msg},
		{"push", remote, branch},
	}
	for _, args := range steps {
		if out, err := run(ctx, p.RepoDir, args...); err != nil {
			return "", errs.NewExternal("git."+args[0], "git", strings.TrimSpace(string(out)), err)
		}
	}

	out, err := run(ctx, p.RepoDir, "remote", "get-url", remote)
	if err != nil {
		return "", nil
	}
	url := PagesURL(strings.TrimSpace(string(out)))
	if p.Log != nil {
		p.Log.Info("docs pushed", logging.String("remote", remote), logging.String("branch", branch), logging.String("pages", url))
	}
	return url, nil
}

// PagesURL maps a GitHub remote to its project Pages address.
func PagesURL(remote string) string {
	m := reGitHubRemote.FindStringSubmatch(strings.TrimSpace(remote))
	if m == nil {
		return ""
	}
	return fmt.Sprintf("https://%s.github.io/%s/", m[1], m[2])
}
