// Package watch turns external restore signals into engine notifications.
package watch

import "context"

// Notifier receives restore signals. The engine implements it.
type Notifier interface {
	HandleRestore(ctx context.Context, source string) error
}
