package database

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

const outcomesTable = "outcome_artifacts"

// OutcomeAdapter implements the OutcomeRepository interface
type OutcomeAdapter struct {
	db sqlx.ExtContext
}

// NewOutcomeAdapter creates an outcome adapter
func NewOutcomeAdapter(db sqlx.ExtContext) repositories.OutcomeRepository {
	return &OutcomeAdapter{db: db}
}

func (a *OutcomeAdapter) Create(ctx context.Context, artifact *entities.OutcomeArtifact) error {
	query, args, err := dialect.Insert(outcomesTable).Prepared(true).Rows(goqu.Record{
		"id":          artifact.ID,
		"booking_id":  artifact.BookingID,
		"kind":        string(artifact.Kind),
		"file_name":   artifact.FileName,
		"url":         artifact.URL,
		"storage_id":  artifact.StorageID,
		"uploaded_by": artifact.UploadedBy,
		"uploaded_at": artifact.UploadedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}
	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to record outcome artifact", err)
	}
	return nil
}

func (a *OutcomeAdapter) ExistsForBooking(ctx context.Context, bookingID string) (bool, error) {
	query, args, err := dialect.From(outcomesTable).Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.C("booking_id").Eq(bookingID)).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build query", err)
	}

	var count int
	if err := sqlx.GetContext(ctx, a.db, &count, query, args...); err != nil {
		return false, apperrors.NewInternalError("failed to check outcome artifacts", err)
	}
	return count > 0, nil
}

func (a *OutcomeAdapter) ListByBooking(ctx context.Context, bookingID string) ([]*entities.OutcomeArtifact, error) {
	query, args, err := dialect.From(outcomesTable).Prepared(true).
		Select("id", "booking_id", "kind", "file_name", "url", "storage_id", "uploaded_by", "uploaded_at").
		Where(goqu.C("booking_id").Eq(bookingID)).
		Order(goqu.C("uploaded_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var artifacts []*entities.OutcomeArtifact
	if err := sqlx.SelectContext(ctx, a.db, &artifacts, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list outcome artifacts", err)
	}
	return artifacts, nil
}
