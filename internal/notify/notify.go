// Package notify tells operators that images are waiting for manual review.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// maxListed caps the file names included in one message.
const maxListed = 10

// Notifier is told about results that entered manual review.
type Notifier interface {
	PendingManual(ctx context.Context, identities []string)
}

// Message renders the operator text for identities.
func Message(identities []string) string {
	var b strings.Builder
	if len(identities) == 1 {
		b.WriteString("1 image needs manual review:")
	} else {
		fmt.Fprintf(&b, "%d images need manual review:", len(identities))
	}
	for i, id := range identities {
		if i == maxListed {
			fmt.Fprintf(&b, "\n… and %d more", len(identities)-maxListed)
			break
		}
		b.WriteString("\n• ")
		b.WriteString(filepath.Base(id))
	}
	return b.String()
}

// LogNotifier writes the notification to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) PendingManual(_ context.Context, identities []string) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("images need manual review", "count", len(identities), "identities", identities)
}

// Multi forwards to every notifier in order.
type Multi []Notifier

func (m Multi) PendingManual(ctx context.Context, identities []string) {
	for _, n := range m {
		n.PendingManual(ctx, identities)
	}
}
