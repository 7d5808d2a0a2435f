package interfaces

import (
	"context"

	"github.com/ternarybob/foliomail/internal/models"
)

// PortfolioStore is the portfolio source: it yields the portfolios (and their
// tracked symbols) that a dispatch run fans out over.
type PortfolioStore interface {
	// List returns all portfolios.
	List(ctx context.Context) ([]models.Portfolio, error)

	// Get returns one portfolio by its email identifier.
	Get(ctx context.Context, email string) (*models.Portfolio, error)

	// Put creates or replaces a portfolio.
	Put(ctx context.Context, portfolio models.Portfolio) error

	// Delete removes a portfolio.
	Delete(ctx context.Context, email string) error
}
