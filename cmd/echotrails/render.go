package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kass/echo-trails/pkg/models"
	"github.com/kass/echo-trails/pkg/unlock"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1FA8C"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))
)

// printer writes plain text, or styled text on a terminal
type printer struct {
	w      io.Writer
	styled bool
}

func (a *app) newPrinter() printer {
	return printer{w: a.out, styled: a.styled}
}

func (p printer) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

func (p printer) title(format string, args ...interface{}) {
	fmt.Fprintln(p.w, p.render(titleStyle, fmt.Sprintf(format, args...)))
}

func (p printer) line(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p printer) dim(format string, args ...interface{}) {
	fmt.Fprintln(p.w, p.render(dimStyle, fmt.Sprintf(format, args...)))
}

func status(res models.UnlockResult) string {
	switch {
	case res.Unlocked:
		return "unlocked"
	case res.TimeLocked && res.OutOfRange:
		return "time-locked, out of range"
	case res.TimeLocked:
		return "time-locked"
	default:
		return "out of range"
	}
}

func (p printer) status(res models.UnlockResult) string {
	s := fmt.Sprintf("%-25s", status(res))
	switch {
	case res.Unlocked:
		return p.render(successStyle, s)
	case res.TimeLocked:
		return p.render(warnStyle, s)
	default:
		return p.render(errorStyle, s)
	}
}

func (p printer) evaluation(ev unlock.Evaluation, now time.Time) {
	p.line("%s  %s  %-24s  %8s / %-7s  %s",
		p.status(ev.Result),
		ev.Drop.ID,
		truncate(displayTitle(ev.Drop), 24),
		formatMeters(ev.Result.Distance),
		formatMeters(ev.Drop.Range),
		lockLabel(ev.Drop.HiddenUntil, now),
	)
}

func (p printer) details(d models.AudioDrop) {
	created := "unknown"
	if !d.CreatedAt.IsZero() {
		created = d.CreatedAt.Local().Format("2006-01-02 15:04")
	}
	file := d.FileName
	if file == "" {
		file = "-"
	}
	p.dim("    file %s, created %s, at %.5f,%.5f", file, created, d.Location.Lat, d.Location.Lon)
}

func (p printer) report(r unlock.Report) {
	p.dim("%d drops: %d unlocked, %d time-locked, %d out of range, %d malformed, %d incomplete",
		r.Total, r.Unlocked, r.TimeLocked, r.OutOfRange, r.Malformed, r.Incomplete)
}

func displayTitle(d models.AudioDrop) string {
	switch {
	case d.Title != "":
		return d.Title
	case d.FileName != "":
		return d.FileName
	default:
		return "(untitled)"
	}
}

func lockLabel(hiddenUntil, now time.Time) string {
	if now.After(hiddenUntil) {
		return "released " + hiddenUntil.Local().Format("2006-01-02 15:04")
	}
	return "opens in " + hiddenUntil.Sub(now).Round(time.Minute).String()
}

func formatMeters(m float64) string {
	if m >= 1000 {
		return fmt.Sprintf("%.2fkm", m/1000)
	}
	return fmt.Sprintf("%.0fm", m)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
