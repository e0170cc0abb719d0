package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// renderReport formats a finished batch for the terminal.
func renderReport(r models.BatchRunReport, pagesURL string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Batch report"))
	b.WriteString("\n")
	for _, j := range r.Jobs {
		b.WriteString(jobLine(j))
		b.WriteString("\n")
	}

	failed := r.Failed()
	summary := fmt.Sprintf("%d/%d succeeded", len(r.Jobs)-failed, len(r.Jobs))
	if failed > 0 {
		summary = failStyle.Render(summary)
	} else {
		summary = okStyle.Render(summary)
	}
	b.WriteString(summary)
	b.WriteString(dimStyle.Render(fmt.Sprintf("  (%s)", r.FinishedAt.Sub(r.StartedAt).Round(time.Second))))
	if r.GalleryErr != "" {
		b.WriteString("\n" + failStyle.Render("gallery: "+r.GalleryErr))
	}
	if r.Published {
		line := "published"
		if pagesURL != "" {
			line += " " + pagesURL
		}
		b.WriteString("\n" + okStyle.Render(line))
	}
	return boxStyle.Render(b.String())
}

func jobLine(j models.JobStatus) string {
	if j.Status == models.JobSuccess {
		detail := ""
		if j.Result != nil {
			detail = fmt.Sprintf("%d slides, %dms", j.Result.Slides, j.Result.ElapsedMS)
		}
		return fmt.Sprintf("%s %s %s", okStyle.Render("✔"), j.ID, dimStyle.Render(detail))
	}
	detail := ""
	switch {
	case j.Result != nil && j.Result.Error != "":
		detail = j.Result.Error
	case j.ExitCode != nil:
		detail = fmt.Sprintf("exit %d", *j.ExitCode)
	}
	return fmt.Sprintf("%s %s %s", failStyle.Render("✘"), j.ID, detail)
}
