// Package console renders session state as plain terminal output for
// headless and one-shot modes.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/sadewadee/mapminer/internal/domain"
	"github.com/sadewadee/mapminer/internal/session"
	"github.com/sadewadee/mapminer/internal/stage"
)

const labelWidth = 12

// Printer writes transcript lines and status blocks to a terminal
type Printer struct {
	out   io.Writer
	width int

	success *color.Color
	warning *color.Color
	err     *color.Color
	info    *color.Color
	muted   *color.Color
	bold    *color.Color
}

// New creates a printer. width bounds the status line; zero means 80.
// Colors follow color.NoColor, which is set when out is not a terminal.
func New(out io.Writer, width int) *Printer {
	if width <= 0 {
		width = 80
	}

	return &Printer{
		out:     out,
		width:   width,
		success: color.New(color.FgGreen, color.Bold),
		warning: color.New(color.FgYellow),
		err:     color.New(color.FgRed, color.Bold),
		info:    color.New(color.FgCyan),
		muted:   color.New(color.FgHiBlack),
		bold:    color.New(color.Bold),
	}
}

func (p *Printer) levelColor(l domain.Level) *color.Color {
	switch l {
	case domain.LevelSuccess:
		return p.success
	case domain.LevelWarning:
		return p.warning
	case domain.LevelError:
		return p.err
	default:
		return p.info
	}
}

// Entry prints one transcript line
func (p *Printer) Entry(e domain.LogEntry) {
	tag := runewidth.FillRight(strings.ToUpper(string(e.Level)), 7)

	fmt.Fprintf(p.out, "%s %s %s\n",
		p.muted.Sprint(e.Timestamp.Format("15:04:05")),
		p.levelColor(e.Level).Sprint(tag),
		e.Message,
	)
}

// Entries prints every line in entries
func (p *Printer) Entries(entries []domain.LogEntry) {
	for _, e := range entries {
		p.Entry(e)
	}
}

// Progress prints a one-line progress summary truncated to the printer width
func (p *Printer) Progress(v session.View) {
	snap := v.Snapshot

	line := fmt.Sprintf("[%s] %d/%d %3.0f%%", snap.Stage.Label(), snap.Progress, snap.Total, snap.Percent()*100)
	if snap.CurrentItem != "" {
		line += " " + snap.CurrentItem
	}

	fmt.Fprintln(p.out, p.muted.Sprint(runewidth.Truncate(line, p.width, "…")))
}

// Status prints the full status block used by the one-shot status mode
func (p *Printer) Status(v session.View) {
	snap := v.Snapshot

	conn := p.err.Sprint("disconnected")
	if v.Connected {
		conn = p.success.Sprint("connected")
	}

	p.field("Runner", conn)
	p.field("Stage", p.bold.Sprint(snap.Stage.Label()))
	p.field("Running", fmt.Sprint(snap.Running))
	p.field("Progress", fmt.Sprintf("%d/%d", snap.Progress, snap.Total))
	if snap.CurrentItem != "" {
		p.field("Current", snap.CurrentItem)
	}

	fmt.Fprintln(p.out)

	names := [3]string{"Collect", "Enrich", "Download"}
	for i, s := range v.Pipeline.Slots {
		p.field(names[i], p.slot(s))
	}

	fmt.Fprintln(p.out)

	p.field("Listings", fmt.Sprint(snap.Stats.MapsScraped))
	p.field("Websites", fmt.Sprint(snap.Stats.WebsitesScraped))
	p.field("Emails", fmt.Sprint(snap.Stats.EmailsFound))
	p.field("Owners", fmt.Sprint(snap.Stats.OwnersFound))

	if v.HasArtifact {
		p.field("Artifact", v.Artifact.Path)
	}

	if v.Rejected > 0 {
		p.field("Ignored", p.warning.Sprintf("%d out-of-order stage updates", v.Rejected))
	}
}

// Job prints the configuration about to be submitted
func (p *Printer) Job(cfg domain.JobConfiguration) {
	p.field("Search", cfg.SearchTerm)
	p.field("Cities", strings.Join(cfg.CityList(), ", "))
	p.field("Entries", fmt.Sprintf("%d per city", cfg.EntriesPerCity))

	if words := cfg.RequiredWordList(); len(words) > 0 {
		p.field("Must match", strings.Join(words, " | "))
	}

	stages := "collect"
	if cfg.RunStage2 {
		stages = fmt.Sprintf("collect, enrich (%d workers)", cfg.MaxWorkers)
	}
	p.field("Stages", stages)

	fmt.Fprintln(p.out)
}

// Saved reports where an artifact was written
func (p *Printer) Saved(path string) {
	fmt.Fprintf(p.out, "%s %s\n", p.success.Sprint("saved"), path)
}

func (p *Printer) field(label, value string) {
	fmt.Fprintf(p.out, "%s %s\n", p.muted.Sprint(runewidth.FillRight(label+":", labelWidth)), value)
}

func (p *Printer) slot(s stage.SlotState) string {
	switch s {
	case stage.SlotActive:
		return p.info.Sprint("active")
	case stage.SlotCompleted:
		return p.success.Sprint("completed")
	default:
		return p.muted.Sprint("pending")
	}
}
