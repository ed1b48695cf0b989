package repository

import (
	"context"
	"database/sql"
	"time"

	"pid_tuner/internal/models"
)

// Operators stores the accounts allowed to use the API.
type Operators interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.Operator, error)
}

// ParameterRepo keeps the last device value of every parameter across runs.
type ParameterRepo interface {
	Upsert(ctx context.Context, key, value string, at time.Time) error
	List(ctx context.Context) ([]models.StoredParameter, error)
}

// EventRepo is the append-only link journal.
type EventRepo interface {
	Append(ctx context.Context, e models.LinkEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.LinkEvent, error)
}

type Repository struct {
	ParameterRepo ParameterRepo
	EventRepo     EventRepo
	Operators     Operators
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		ParameterRepo: NewParameterSQLite(db),
		EventRepo:     NewEventSQLite(db),
		Operators:     NewOperatorSQLite(db),
	}
}
