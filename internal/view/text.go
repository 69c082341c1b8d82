package view

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)

	// Keyed by Row.LevelClass and Summary.TierClass.
	classStyles = map[string]lipgloss.Style{
		"lvl-low":  cellStyle.Foreground(lipgloss.Color("10")),
		"lvl-mid":  cellStyle.Foreground(lipgloss.Color("11")),
		"lvl-high": cellStyle.Foreground(lipgloss.Color("9")),
		"ok":       lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		"warn":     lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		"bad":      lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
)

const levelColumn = 2

// RenderText draws the rows as a terminal table.
func RenderText(rows []Row) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PLACE", "TYPE", "LEVEL", "DATE", "COMMENT", "ID")

	for _, r := range rows {
		t.Row(r.Place, r.Type, strconv.Itoa(r.Level), r.Date, r.Comment, r.ID)
	}

	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if col == levelColumn && row >= 0 && row < len(rows) {
			if s, ok := classStyles[rows[row].LevelClass]; ok {
				return s
			}
		}
		return cellStyle
	})

	return t.String()
}

// RenderSummaryText draws the summary block.
func RenderSummaryText(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reports:       %s\n", s.CountText)
	fmt.Fprintf(&b, "Average level: %s\n", classStyles[s.TierClass].Render(s.MeanText))
	if s.Recommendation != "" {
		fmt.Fprintf(&b, "Recommendation: %s\n", s.Recommendation)
	}
	return b.String()
}
