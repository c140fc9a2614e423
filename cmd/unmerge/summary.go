package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"unmerge/internal/archive"
	"unmerge/internal/distmarker"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#565f89")).
			Padding(0, 1)
)

func renderSummary(dist distmarker.Distribution, output string, s *archive.Stats) string {
	rows := [][2]string{
		{"entries read", fmt.Sprint(s.EntriesRead)},
		{"entries written", fmt.Sprint(s.EntriesWritten)},
		{"copied", fmt.Sprint(s.Copied)},
		{"rewritten", fmt.Sprint(s.Rewritten)},
		{"removed", fmt.Sprint(s.Removed)},
		{"excluded by manifest", fmt.Sprint(s.Excluded)},
		{"members removed", fmt.Sprint(s.MembersRemoved)},
		{"interfaces removed", fmt.Sprint(s.InterfacesRemoved)},
		{"targets", fmt.Sprint(s.Targets)},
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(dist.Name+" → "+output) + "\n")
	for _, r := range rows {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-*s", width, r[0])))
		b.WriteString("  " + r[1] + "\n")
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("took %s", s.Duration.Round(1e6))))
	return boxStyle.Render(b.String())
}
