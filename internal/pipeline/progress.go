package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives batch progress. Implementations must be safe
// for concurrent use; workers report independently.
type ProgressCallback interface {
	OnStart(total int)
	OnProgress(current, total int)
	OnComplete()
	// OnError reports a failed image by its position in the batch.
	OnError(index int, err error)
}

// NoOpProgressCallback discards everything.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)         {}
func (NoOpProgressCallback) OnProgress(int, int) {}
func (NoOpProgressCallback) OnComplete()         {}
func (NoOpProgressCallback) OnError(int, error)  {}

// ConsoleProgressCallback draws a single-line progress bar.
type ConsoleProgressCallback struct {
	mu       sync.Mutex
	w        io.Writer
	prefix   string
	width    int
	interval time.Duration
	started  time.Time
	lastDraw time.Time
}

// NewConsoleProgressCallback writes to w, or stderr when w is nil.
func NewConsoleProgressCallback(w io.Writer, prefix string) *ConsoleProgressCallback {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleProgressCallback{w: w, prefix: prefix, width: 30, interval: 100 * time.Millisecond}
}

// WithWidth sets the bar width in characters.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	if width > 0 {
		c.width = width
	}
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = time.Now()
	c.lastDraw = time.Time{}
	_, _ = fmt.Fprintf(c.w, "%s0/%d images\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnProgress(current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if current < total && now.Sub(c.lastDraw) < c.interval {
		return
	}
	c.lastDraw = now
	if total <= 0 {
		return
	}
	filled := c.width * current / total
	bar := strings.Repeat("#", filled) + strings.Repeat(".", c.width-filled)
	line := fmt.Sprintf("\r%s[%s] %d/%d (%.1f%%)", c.prefix, bar, current, total, float64(current)*100/float64(total))
	if elapsed := now.Sub(c.started); elapsed > 0 && current > 0 {
		line += fmt.Sprintf(" %.1f img/s", float64(current)/elapsed.Seconds())
	}
	_, _ = fmt.Fprint(c.w, line)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "\n%sdone in %v\n", c.prefix, time.Since(c.started).Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) OnError(index int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "\n%simage %d failed: %v\n", c.prefix, index, err)
}

// LogProgressCallback logs progress every Interval images.
type LogProgressCallback struct {
	mu       sync.Mutex
	logger   *slog.Logger
	interval int
	lastLog  int
	started  time.Time
}

// NewLogProgressCallback logs at info level through logger.
func NewLogProgressCallback(logger *slog.Logger, interval int) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10
	}
	return &LogProgressCallback{logger: logger, interval: interval}
}

func (l *LogProgressCallback) OnStart(total int) {
	l.mu.Lock()
	l.started = time.Now()
	l.lastLog = 0
	l.mu.Unlock()
	l.logger.Info("detection batch started", "total", total)
}

func (l *LogProgressCallback) OnProgress(current, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current-l.lastLog < l.interval && current != total {
		return
	}
	l.lastLog = current
	l.logger.Info("detection progress",
		"current", current,
		"total", total,
		"elapsed", time.Since(l.started).Round(time.Millisecond))
}

func (l *LogProgressCallback) OnComplete() {
	l.mu.Lock()
	elapsed := time.Since(l.started)
	l.mu.Unlock()
	l.logger.Info("detection batch completed", "elapsed", elapsed.Round(time.Millisecond))
}

func (l *LogProgressCallback) OnError(index int, err error) {
	l.logger.Error("detection failed", "index", index, "error", err)
}

// MultiProgressCallback fans out to several callbacks.
type MultiProgressCallback []ProgressCallback

func (m MultiProgressCallback) OnStart(total int) {
	for _, cb := range m {
		cb.OnStart(total)
	}
}

func (m MultiProgressCallback) OnProgress(current, total int) {
	for _, cb := range m {
		cb.OnProgress(current, total)
	}
}

func (m MultiProgressCallback) OnComplete() {
	for _, cb := range m {
		cb.OnComplete()
	}
}

func (m MultiProgressCallback) OnError(index int, err error) {
	for _, cb := range m {
		cb.OnError(index, err)
	}
}
