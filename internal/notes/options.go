package notes

import (
	"context"
	"time"
)

// Option configures a repository.
type Option func(*repoOptions)

type repoOptions struct {
	publisher Publisher
	logger    Logger
}

// WithPublisher sends a ChangeEvent to p after every successful write.
func WithPublisher(p Publisher) Option {
	return func(o *repoOptions) {
		o.publisher = p
	}
}

// WithLogger sets the logger used to report failed publishes.
func WithLogger(l Logger) Option {
	return func(o *repoOptions) {
		o.logger = l
	}
}

func buildOptions(opts []Option) repoOptions {
	var o repoOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// publish delivers e if a publisher is configured. Failures are logged.
func (o repoOptions) publish(ctx context.Context, entity Entity, action Action, id, pid int64) {
	if o.publisher == nil {
		return
	}
	e := ChangeEvent{Entity: entity, Action: action, ID: id, PID: pid, At: time.Now().UTC()}
	if err := o.publisher.PublishChange(ctx, e); err != nil && o.logger != nil {
		o.logger.Warn("publishing change event failed",
			"entity", e.Entity, "action", e.Action, "id", e.ID, "error", err)
	}
}
