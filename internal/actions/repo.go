package actions

import (
	"context"

	"pmat/internal/output"
	"pmat/internal/remote"
)

// RepoInfo fetches GitHub metadata for a repository URL or owner/name.
func RepoInfo(ctx context.Context, env *Env, target string) (*remote.Metadata, error) {
	repo, err := remote.ParseURL(target)
	if err != nil {
		return nil, err
	}
	c := remote.NewClient(ctx, env.Config.GitHub.Token)
	if base := env.Config.GitHub.APIURL; base != "" {
		if c, err = c.WithBaseURL(base); err != nil {
			return nil, err
		}
	}
	return c.Metadata(ctx, repo)
}

func writeRepo(p *output.Printer, f output.Format, m *remote.Metadata) error {
	if err := output.Supports(f, output.FormatTable, output.FormatSummary); err != nil {
		return err
	}
	rows := [][]string{
		{"Repository", m.FullName},
		{"Description", m.Description},
		{"Default branch", m.DefaultBranch},
		{"Language", m.Language},
		{"Stars", output.Count(m.Stars)},
		{"Forks", output.Count(m.Forks)},
		{"Open issues", output.Count(m.OpenIssues)},
		{"Size", output.Bytes(int64(m.SizeKB) * 1024)},
	}
	if !m.PushedAt.IsZero() {
		rows = append(rows, []string{"Last push", output.Ago(m.PushedAt)})
	}
	if m.Archived {
		rows = append(rows, []string{"Archived", "yes"})
	}
	return p.Table([]string{"Field", "Value"}, rows)
}
