package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

// classify sorts a database error into the two kinds the sync worker acts on.
// Constraint violations (class 23) and bad input (class 22) will fail again on
// retry and are rejections; everything else is treated as the store being
// unreachable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, domain.ErrRemoteRejected) || errors.Is(err, domain.ErrRemoteUnavailable) {
		return err
	}

	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		class := string(pgErr.Code.Class())
		if class == "23" || class == "22" {
			return fmt.Errorf("%w: %s: %s (%s)", domain.ErrRemoteRejected, op, pgErr.Message, pgErr.Code)
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s: no matching row", domain.ErrRemoteRejected, op)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrRemoteUnavailable, op, err)
}
