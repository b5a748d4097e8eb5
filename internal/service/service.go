// Package service orchestrates domain operations against the store. Every
// mutation loads, changes and saves its entities together with their outbox
// events in one store transaction.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/rogerbap/gaminglibrary/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/rogerbap/gaminglibrary/internal/service")

// writeOutbox persists the recorded events in the caller's transaction.
func writeOutbox(ctx context.Context, tx repository.Store, events *domain.EventLog) error {
	for _, draft := range events.Drafts() {
		if err := tx.Outbox().Insert(ctx, draft); err != nil {
			return fmt.Errorf("insert outbox event %s: %w", draft.EventType, err)
		}
	}
	return nil
}

// storeError maps store failures onto the domain taxonomy. AppErrors pass
// through untouched.
func storeError(op string, err error) error {
	var appErr *domain.AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, repository.ErrDuplicateEmail):
		return domain.ErrConflict("email is already registered")
	case errors.Is(err, repository.ErrActiveSessionExists):
		return domain.ErrConflict("player already has an active session")
	default:
		return domain.ErrInternal(op, err)
	}
}

// listLimit applies the default for 0 and rejects anything outside 1..100.
func listLimit(limit int) (int, error) {
	if limit == 0 {
		return repository.DefaultListLimit, nil
	}
	if limit < 1 || limit > repository.MaxListLimit {
		return 0, domain.ErrValidation(fmt.Sprintf("limit must be between 1 and %d", repository.MaxListLimit))
	}
	return limit, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
