package port

import "context"

// EventListenerPort входящий поток событий
type EventListenerPort interface {
	Start(ctx context.Context) error
	Close() error
}
