package repository

import (
	"context"
	"database/sql"

	"dynamic_power/internal/models"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.Operator, error)
	Count() (int, error)
}

type StateRepo interface {
	Save(ctx context.Context, s models.PowerState) error
	Load(ctx context.Context) (models.PowerState, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.PowerEvent) error
	List(ctx context.Context, q EventQuery) ([]models.PowerEvent, error)
}

type Repository struct {
	StateRepo StateRepo
	EventRepo EventRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		StateRepo: NewStateSQLite(db),
		EventRepo: NewEventSQLite(db),
		Auth:      NewOperatorRepository(db),
	}
}
