package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// DefaultFlashDuration is how long a notice stays on screen.
const DefaultFlashDuration = 3 * time.Second

// FlashLevel represents the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

// FlashMessage is a flash notification with a level and expiry.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
}

// FlashModel holds the current transient notice. Every level auto-dismisses;
// warnings and errors stay twice as long as info.
type FlashModel struct {
	mu       sync.RWMutex
	current  FlashMessage
	duration time.Duration
	now      func() time.Time
	watchCh  chan FlashMessage
}

// NewFlashModel creates a flash model. d <= 0 uses DefaultFlashDuration.
func NewFlashModel(d time.Duration) *FlashModel {
	if d <= 0 {
		d = DefaultFlashDuration
	}
	return &FlashModel{
		duration: d,
		now:      time.Now,
		watchCh:  make(chan FlashMessage, 8),
	}
}

// Duration returns the info-level display time.
func (f *FlashModel) Duration() time.Duration { return f.duration }

// Info sets an info-level flash message.
func (f *FlashModel) Info(msg string) {
	f.set(msg, FlashInfo, f.duration)
}

// Warn sets a warn-level flash message.
func (f *FlashModel) Warn(msg string) {
	f.set(msg, FlashWarn, 2*f.duration)
}

// Err sets an error-level flash message.
func (f *FlashModel) Err(msg string) {
	f.set(msg, FlashErr, 2*f.duration)
}

// Clear dismisses the current message.
func (f *FlashModel) Clear() {
	f.mu.Lock()
	f.current = FlashMessage{}
	f.mu.Unlock()
}

func (f *FlashModel) set(msg string, level FlashLevel, d time.Duration) {
	fm := FlashMessage{
		Text:    msg,
		Level:   level,
		Expires: f.now().Add(d),
	}
	f.mu.Lock()
	f.current = fm
	f.mu.Unlock()
	select {
	case f.watchCh <- fm:
	default:
	}
}

// GetMessage returns the current flash message, or nil if expired.
func (f *FlashModel) GetMessage() *FlashMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current.Text == "" || !f.now().Before(f.current.Expires) {
		return nil
	}
	m := f.current
	return &m
}

// Watch returns a channel that receives flash messages as they are set.
func (f *FlashModel) Watch() <-chan FlashMessage {
	return f.watchCh
}

// FlashBar is the UI component that displays flash notifications.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

// NewFlashBar creates a new flash notification bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &FlashBar{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders a flash message on the bar. nil clears it.
func (fb *FlashBar) Update(msg *FlashMessage) {
	fb.Clear()
	if msg == nil {
		return
	}

	var color string
	switch msg.Level {
	case FlashInfo:
		color = ColorName(fb.theme.FlashInfoColor)
	case FlashWarn:
		color = ColorName(fb.theme.FlashWarnColor)
	case FlashErr:
		color = ColorName(fb.theme.FlashErrColor)
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s[-]", color, tview.Escape(msg.Text))
}
