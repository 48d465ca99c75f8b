package repository

import (
	"context"

	"session-control-plane/internal/user/domain"
)

// Repository defines read access to users. Missing rows are (nil, nil);
// errors are database failures only.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}
