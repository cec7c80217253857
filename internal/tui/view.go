package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadewadee/mapminer/internal/domain"
)

var slotTitles = [3]string{"1 · Collect listings", "2 · Enrich websites", "3 · Download CSV"}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderPipeline())
	b.WriteString("\n")
	b.WriteString(m.renderProgress())
	b.WriteString("\n")
	b.WriteString(m.renderStats())
	b.WriteString("\n")
	b.WriteString(renderDivider(m.width))
	b.WriteString("\n")
	b.WriteString(m.renderLogs())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m *Model) renderHeader() string {
	conn := errorStyle.Render("● disconnected")
	if m.state.Connected {
		conn = successStyle.Render("● connected")
	}

	return titleStyle.Render("MapMiner") + "  " + conn + "  " +
		mutedStyle.Render(m.state.Snapshot.Stage.Label())
}

func (m *Model) renderPipeline() string {
	boxes := make([]string, 0, len(m.state.Pipeline.Slots))

	for i, s := range m.state.Pipeline.Slots {
		body := slotTitles[i] + "\n" + slotMarker(s)
		boxes = append(boxes, slotBorder(s).Render(body))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func (m *Model) renderProgress() string {
	snap := m.state.Snapshot

	counter := mutedStyle.Render("waiting")
	if snap.Total > 0 {
		counter = fmt.Sprintf("%d/%d", snap.Progress, snap.Total)
	}

	line := m.progress.ViewAs(snap.Percent()) + "  " + counter
	if snap.CurrentItem != "" {
		line += "\n" + fieldLabelStyle.Render("Current:") + snap.CurrentItem
	}

	return line
}

func (m *Model) renderStats() string {
	st := m.state.Snapshot.Stats

	fields := []string{
		fieldLabelStyle.Render("Listings:") + fmt.Sprint(st.MapsScraped),
		fieldLabelStyle.Render("Websites:") + fmt.Sprint(st.WebsitesScraped),
		fieldLabelStyle.Render("Emails:") + fmt.Sprint(st.EmailsFound),
		fieldLabelStyle.Render("Owners:") + fmt.Sprint(st.OwnersFound),
	}

	if m.state.Rejected > 0 {
		fields = append(fields, warningStyle.Render(fmt.Sprintf("%d ignored", m.state.Rejected)))
	}

	return strings.Join(fields, "   ")
}

func (m *Model) renderLogs() string {
	// header, pipeline, progress, stats, divider and footer take about 12 rows
	rows := max(m.height-12, 3)

	entries := m.logs
	if len(entries) > rows {
		entries = entries[len(entries)-rows:]
	}

	if len(entries) == 0 {
		return mutedStyle.Render("No logs yet. Press s to start scraping.")
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, formatEntry(e))
	}

	return strings.Join(lines, "\n")
}

func formatEntry(e domain.LogEntry) string {
	style := levelStyle(e.Level)

	return mutedStyle.Render(e.Timestamp.Format("15:04:05")) + " " +
		style.Render(levelMarker(e.Level)) + " " + e.Message
}

func (m *Model) renderFooter() string {
	keys := "s start • x stop • d download • c clear logs • q quit"

	status := ""
	switch {
	case m.busy != "":
		status = infoStyle.Render(m.busy + "...")
	case m.lastErr != nil:
		status = errorStyle.Render(m.lastErr.Error())
	}

	if status == "" {
		return helpStyle.Render(keys)
	}

	return status + "\n" + helpStyle.Render(keys)
}
