package notifier

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"pricewatch/internal/logger"
)

// Console is the fallback channel when no transport is configured. It prints
// the alert and never fails.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Notify(_ context.Context, alert Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.out, "[NOTIFICATION] %s\n", alert.Text()); err != nil {
		logger.Warnf("console notifier: write failed: %v", err)
	}
	return nil
}
