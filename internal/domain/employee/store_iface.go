package employee

import "context"

type Store interface {
	// GetActiveByCardHash returns the active employee holding the card, or
	// nil when the hash is unknown or only assigned to deactivated rows.
	GetActiveByCardHash(ctx context.Context, cardHash string) (*Employee, error)

	Get(ctx context.Context, id string) (*Employee, error)
	ListActive(ctx context.Context) ([]Employee, error)

	Create(ctx context.Context, emp Employee) (string, error)
	Update(ctx context.Context, emp Employee) error

	// Deactivate flips the active flag; employees are never hard-deleted.
	Deactivate(ctx context.Context, id string) error
}
