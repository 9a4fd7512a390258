package notifier

import "context"

// Notifier delivers one new-low alert. Implementations make a single attempt;
// retry policy belongs to the transport, never to the caller.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert Alert) error
}
