package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/orneryd/shelfsort/pkg/config"
	"github.com/orneryd/shelfsort/pkg/organize"
	"github.com/orneryd/shelfsort/pkg/organizer"
	"github.com/orneryd/shelfsort/pkg/storage"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	movedStyle  = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("42"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...)
}

func locationText(loc *organize.Location) string {
	if loc == nil {
		return "-"
	}
	return loc.String()
}

func renderDocuments(docs []*storage.Document) string {
	if len(docs) == 0 {
		return mutedStyle.Render("No documents stored.")
	}

	t := newTable("ID", "NAME", "DIMS", "LOCATION")
	for _, d := range docs {
		dims := "-"
		if d.Embedding.IsPresent() {
			dims = fmt.Sprintf("%d", d.Embedding.Dimensions())
		}
		t.Row(d.ID, d.Name, dims, locationText(d.Location))
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		return cellStyle
	})
	return t.Render()
}

func renderSuggestions(suggestions []organize.Suggestion) string {
	if len(suggestions) == 0 {
		return mutedStyle.Render("Nothing to move.")
	}

	t := newTable("ID", "NAME", "CURRENT", "SUGGESTED")
	for _, s := range suggestions {
		t.Row(s.DocumentID, s.Name, locationText(s.Current), s.Suggested.String())
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if col == 3 && suggestions[row].Changed() {
			return movedStyle
		}
		return cellStyle
	})
	return t.Render()
}

func renderClusters(clusters []organizer.Cluster) string {
	if len(clusters) == 0 {
		return mutedStyle.Render("No clusters.")
	}

	t := newTable("CLUSTER", "LOCATION", "SIZE", "MEMBERS")
	for _, c := range clusters {
		t.Row(c.Name, c.Location.String(), fmt.Sprintf("%d", len(c.Members)), strings.Join(c.Members, ", "))
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		return cellStyle
	})
	return t.Render()
}

func renderSummary(r *organizer.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s: %d documents, %d clusters, %d to move",
		r.Strategy, r.Documents, len(r.Clusters), r.Changed)
	if len(r.Skipped) > 0 {
		fmt.Fprintf(&b, ", %d skipped (no embedding)", len(r.Skipped))
	}
	fmt.Fprintf(&b, "\n   %d iterations (converged: %v)", r.Iterations, r.Converged)
	if r.Strategy == config.StrategyCommunities {
		fmt.Fprintf(&b, ", %d edges, modularity %.3f", r.Edges, r.Modularity)
	}
	fmt.Fprintf(&b, ", took %s", r.Duration.Round(time.Microsecond))
	return mutedStyle.Render(b.String())
}
