package ui

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/avidaloop/localsend-go/internal/model"
)

// RenderPeerTable prints the live discovery table using go-pretty, the
// column-aligned table renderer that complements the lipgloss/table-based
// FileTable: discovery output refreshes in place on a ticker, so it favors
// go-pretty's plain, redraw-friendly text rendering over lipgloss/table's
// heavier border styling.
func RenderPeerTable(peers []model.DeviceInfo) string {
	if len(peers) == 0 {
		return MutedStyle.Render("No peers discovered yet")
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Alias", "Type", "Model", "Address"})

	for i, p := range peers {
		t.AppendRow(table.Row{i + 1, p.Alias, p.DeviceType, p.DeviceModel, p.IP})
	}

	var b strings.Builder
	b.WriteString(t.Render())
	return b.String()
}
