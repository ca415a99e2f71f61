package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lexiqai/session-recorder/internal/audio"
	"github.com/lexiqai/session-recorder/internal/catalog"
)

var (
	colorRed    = lipgloss.Color("196")
	colorGreen  = lipgloss.Color("42")
	colorYellow = lipgloss.Color("214")
	colorBlue   = lipgloss.Color("39")
	colorGray   = lipgloss.Color("241")

	badgeStyles = map[catalog.Status]lipgloss.Style{
		catalog.StatusPending:    lipgloss.NewStyle().Foreground(colorGray).Bold(true),
		catalog.StatusProcessing: lipgloss.NewStyle().Foreground(colorYellow).Bold(true),
		catalog.StatusCompleted:  lipgloss.NewStyle().Foreground(colorGreen).Bold(true),
		catalog.StatusFailed:     lipgloss.NewStyle().Foreground(colorRed).Bold(true),
	}

	recordingStyle = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(colorGray)
	linkStyle      = lipgloss.NewStyle().Foreground(colorBlue)
	errorStyle     = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	warnStyle      = lipgloss.NewStyle().Foreground(colorYellow)
	successStyle   = lipgloss.NewStyle().Foreground(colorGreen)
)

type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

// Badge renders a record status as a fixed-width colored label
func Badge(status catalog.Status) string {
	style, ok := badgeStyles[status]
	if !ok {
		style = dimStyle
	}
	return style.Render(fmt.Sprintf("%-10s", strings.ToUpper(string(status))))
}

func (f *Formatter) RecordingStarted(sessionID, device string) {
	if device == "" {
		device = "default input"
	}
	fmt.Fprintf(f.w, "%s %s %s\n", recordingStyle.Render("● REC"), sessionID, dimStyle.Render("("+device+")"))
	fmt.Fprintln(f.w, dimStyle.Render("  Press Ctrl+C to stop"))
}

func (f *Formatter) RecordingStopped(duration time.Duration, chunks int) {
	fmt.Fprintf(f.w, "⏹️  Recording stopped (%s, %d chunk(s))\n", formatDuration(duration), chunks)
}

// RecordUpdate prints one change of a record as it moves through the pipeline
func (f *Formatter) RecordUpdate(r catalog.Record) {
	line := fmt.Sprintf("%s %s", Badge(r.Status), r.Name)
	if r.Message != "" {
		line += dimStyle.Render(" · " + r.Message)
	}
	fmt.Fprintln(f.w, line)
}

// RecordDetail prints a record with its links
func (f *Formatter) RecordDetail(r catalog.Record) {
	fmt.Fprintf(f.w, "%s %s\n", Badge(r.Status), r.Name)
	if r.Message != "" {
		fmt.Fprintf(f.w, "  %s\n", r.Message)
	}
	if r.AudioLink != "" {
		fmt.Fprintf(f.w, "  audio:      %s\n", linkStyle.Render(r.AudioLink))
	}
	if r.TranscriptLink != "" {
		fmt.Fprintf(f.w, "  transcript: %s\n", linkStyle.Render(r.TranscriptLink))
	}
	if r.SummaryURL != "" {
		fmt.Fprintf(f.w, "  summary:    %s\n", linkStyle.Render(r.SummaryURL))
	}
	if r.Summary != "" {
		fmt.Fprintf(f.w, "\n%s\n", r.Summary)
	}
}

func (f *Formatter) RecordList(records []catalog.Record) {
	if len(records) == 0 {
		f.Info("No recordings yet")
		return
	}
	fmt.Fprintf(f.w, "🎙️  Recordings:\n\n")
	for _, r := range records {
		fmt.Fprintf(f.w, "  %s %s %s\n", Badge(r.Status), r.Name, dimStyle.Render(r.CreatedAt.Local().Format("2006-01-02 15:04")))
	}
}

// FileGroups prints the backend catalog grouped per recording
func (f *Formatter) FileGroups(groups []catalog.Group) {
	if len(groups) == 0 {
		f.Info("No files on the server")
		return
	}
	fmt.Fprintf(f.w, "📁 Server files:\n\n")
	for _, g := range groups {
		fmt.Fprintf(f.w, "  %s%s%s %s\n", mark(g.Audio != nil, "🎧"), mark(g.Transcript != nil, "📝"), mark(g.Summary != nil, "📋"), g.ID)
	}
}

func (f *Formatter) Devices(devices []audio.DeviceInfo) {
	if len(devices) == 0 {
		f.Warning("No capture devices found")
		return
	}
	fmt.Fprintf(f.w, "🎤 Capture devices:\n\n")
	for _, d := range devices {
		fmt.Fprintf(f.w, "  %s %s\n", d.Name, dimStyle.Render(d.ID))
	}
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "%s %s\n", errorStyle.Render("✗"), msg)
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintf(f.w, "%s %s\n", successStyle.Render("✓"), msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "%s %s\n", warnStyle.Render("!"), msg)
}

func mark(ok bool, symbol string) string {
	if ok {
		return symbol
	}
	return "  "
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
