package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

const schedulesTable = "schedule_windows"

var scheduleColumns = []interface{}{
	"id", "provider_id", "modality", "days", "status", "note",
	"requested_by", "reviewed_by", "created_at", "updated_at",
}

type scheduleRow struct {
	ID          string         `db:"id"`
	ProviderID  string         `db:"provider_id"`
	Modality    string         `db:"modality"`
	Days        string         `db:"days"`
	Status      string         `db:"status"`
	Note        string         `db:"note"`
	RequestedBy string         `db:"requested_by"`
	ReviewedBy  sql.NullString `db:"reviewed_by"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r *scheduleRow) toEntity() (*entities.ScheduleWindow, error) {
	w := &entities.ScheduleWindow{
		ID:          r.ID,
		ProviderID:  r.ProviderID,
		Modality:    entities.Modality(r.Modality),
		Status:      entities.ScheduleStatus(r.Status),
		Note:        r.Note,
		RequestedBy: r.RequestedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.ReviewedBy.Valid {
		w.ReviewedBy = &r.ReviewedBy.String
	}
	if err := json.Unmarshal([]byte(r.Days), &w.Days); err != nil {
		return nil, apperrors.NewInternalError("failed to decode schedule days", err)
	}
	return w, nil
}

// ScheduleAdapter implements the ScheduleRepository interface
type ScheduleAdapter struct {
	db sqlx.ExtContext
}

// NewScheduleAdapter creates a schedule adapter
func NewScheduleAdapter(db sqlx.ExtContext) repositories.ScheduleRepository {
	return &ScheduleAdapter{db: db}
}

// Create stores a schedule change request
func (a *ScheduleAdapter) Create(ctx context.Context, window *entities.ScheduleWindow) error {
	days, err := json.Marshal(window.Days)
	if err != nil {
		return apperrors.NewInternalError("failed to encode schedule days", err)
	}

	query, args, err := dialect.Insert(schedulesTable).Prepared(true).Rows(goqu.Record{
		"id":           window.ID,
		"provider_id":  window.ProviderID,
		"modality":     string(window.Modality),
		"days":         string(days),
		"status":       string(window.Status),
		"note":         window.Note,
		"requested_by": window.RequestedBy,
		"reviewed_by":  window.ReviewedBy,
		"created_at":   window.CreatedAt,
		"updated_at":   window.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create schedule window", err)
	}
	return nil
}

// GetByID retrieves a schedule window by ID
func (a *ScheduleAdapter) GetByID(ctx context.Context, id string) (*entities.ScheduleWindow, error) {
	return a.getOne(ctx, dialect.From(schedulesTable).Where(goqu.C("id").Eq(id)),
		fmt.Sprintf("schedule window with id %s not found", id))
}

// GetForUpdate retrieves and locks a schedule window
func (a *ScheduleAdapter) GetForUpdate(ctx context.Context, id string) (*entities.ScheduleWindow, error) {
	return a.getOne(ctx, dialect.From(schedulesTable).Where(goqu.C("id").Eq(id)).ForUpdate(exp.Wait),
		fmt.Sprintf("schedule window with id %s not found", id))
}

// GetApproved retrieves the approved window for a provider and modality
func (a *ScheduleAdapter) GetApproved(ctx context.Context, providerID string, modality entities.Modality) (*entities.ScheduleWindow, error) {
	ds := dialect.From(schedulesTable).Where(
		goqu.C("provider_id").Eq(providerID),
		goqu.C("modality").Eq(string(modality)),
		goqu.C("status").Eq(string(entities.ScheduleApproved)),
	)
	return a.getOne(ctx, ds, fmt.Sprintf("no approved %s schedule for provider %s", modality, providerID))
}

func (a *ScheduleAdapter) getOne(ctx context.Context, ds *goqu.SelectDataset, notFound string) (*entities.ScheduleWindow, error) {
	query, args, err := ds.Prepared(true).Select(scheduleColumns...).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var row scheduleRow
	if err := sqlx.GetContext(ctx, a.db, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(notFound)
		}
		return nil, apperrors.NewInternalError("failed to get schedule window", err)
	}
	return row.toEntity()
}

// Update writes the review outcome of a schedule window
func (a *ScheduleAdapter) Update(ctx context.Context, window *entities.ScheduleWindow) error {
	days, err := json.Marshal(window.Days)
	if err != nil {
		return apperrors.NewInternalError("failed to encode schedule days", err)
	}

	query, args, err := dialect.Update(schedulesTable).Prepared(true).
		Set(goqu.Record{
			"days":        string(days),
			"status":      string(window.Status),
			"note":        window.Note,
			"reviewed_by": window.ReviewedBy,
			"updated_at":  window.UpdatedAt,
		}).
		Where(goqu.C("id").Eq(window.ID)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("provider already has an approved schedule for this modality")
		}
		return apperrors.NewInternalError("failed to update schedule window", err)
	}
	return nil
}
