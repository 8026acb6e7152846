package watch

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	log "github.com/sirupsen/logrus"

	"github.com/kass/echo-trails/pkg/models"
)

// Notification announces a drop that became playable
type Notification struct {
	TickID   string
	Drop     models.AudioDrop
	Distance float64 // meters
	At       time.Time
}

// Notifier delivers notifications to the user
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to a logrus logger
type LogNotifier struct {
	Logger log.FieldLogger
}

// Notify logs n at info level
func (l LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.Logger.WithFields(log.Fields{
		"tick_id":  n.TickID,
		"drop_id":  n.Drop.ID,
		"title":    n.Drop.Title,
		"distance": fmt.Sprintf("%.1fm", n.Distance),
		"range":    n.Drop.Range,
	}).Info("You are within range of an unlocked audio drop")
	return nil
}

var (
	alertStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#50FA7B"))

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))
)

// WriterNotifier prints one styled line per notification
type WriterNotifier struct {
	W  io.Writer
	mu sync.Mutex
}

// NewWriterNotifier returns a WriterNotifier printing to w
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{W: w}
}

// Notify prints n
func (w *WriterNotifier) Notify(ctx context.Context, n Notification) error {
	title := n.Drop.Title
	if title == "" {
		title = n.Drop.ID
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintf(w.W, "%s %s\n",
		alertStyle.Render("♪ "+title+" unlocked"),
		detailStyle.Render(fmt.Sprintf("(%s, %.0fm away, range %.0fm)", n.Drop.ID, n.Distance, n.Drop.Range)),
	)
	return err
}

// MultiNotifier fans a notification out to every notifier, returning the
// first error.
type MultiNotifier []Notifier

// Notify calls every notifier in order
func (m MultiNotifier) Notify(ctx context.Context, n Notification) error {
	var first error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}
