package repository

import (
	"context"
	"errors"

	"github.com/IANDYI/vitals-service/internal/core/ports"
	"github.com/google/uuid"
)

// FanoutNotifier publishes every event to all of its notifiers.
// One failing target doesn't stop the others; the errors are joined.
type FanoutNotifier struct {
	notifiers []ports.Notifier
}

// NewFanoutNotifier skips nil notifiers so optional transports can be passed unconditionally
func NewFanoutNotifier(notifiers ...ports.Notifier) *FanoutNotifier {
	f := &FanoutNotifier{}
	for _, n := range notifiers {
		if n != nil {
			f.notifiers = append(f.notifiers, n)
		}
	}
	return f
}

// Len returns the number of configured targets
func (f *FanoutNotifier) Len() int {
	return len(f.notifiers)
}

func (f *FanoutNotifier) PublishToSubjectChannel(ctx context.Context, subjectID uuid.UUID, event string, payload interface{}) error {
	var errs []error
	for _, n := range f.notifiers {
		if err := n.PublishToSubjectChannel(ctx, subjectID, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ ports.Notifier = (*FanoutNotifier)(nil)
