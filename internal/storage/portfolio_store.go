package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/foliomail/internal/interfaces"
	"github.com/ternarybob/foliomail/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ErrPortfolioNotFound is returned when no portfolio exists for an email.
var ErrPortfolioNotFound = errors.New("portfolio not found")

// PortfolioStore is a badgerhold-backed portfolio source.
type PortfolioStore struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.PortfolioStore = (*PortfolioStore)(nil)

// NewPortfolioStore creates a portfolio store on the shared database.
func NewPortfolioStore(db *BadgerDB, logger arbor.ILogger) *PortfolioStore {
	return &PortfolioStore{
		store:  db.Store(),
		logger: logger,
	}
}

// List returns all portfolios.
func (s *PortfolioStore) List(ctx context.Context) ([]models.Portfolio, error) {
	var portfolios []models.Portfolio
	if err := s.store.Find(&portfolios, nil); err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	return portfolios, nil
}

// Get returns one portfolio by its email identifier.
func (s *PortfolioStore) Get(ctx context.Context, email string) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	if err := s.store.Get(email, &portfolio); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, ErrPortfolioNotFound
		}
		return nil, fmt.Errorf("failed to get portfolio %s: %w", email, err)
	}
	return &portfolio, nil
}

// Put creates or replaces a portfolio.
func (s *PortfolioStore) Put(ctx context.Context, portfolio models.Portfolio) error {
	if portfolio.Email == "" {
		return errors.New("portfolio email is required")
	}

	if err := s.store.Upsert(portfolio.Email, portfolio); err != nil {
		return fmt.Errorf("failed to store portfolio %s: %w", portfolio.Email, err)
	}

	s.logger.Debug().
		Str("email", portfolio.Email).
		Int("accounts", len(portfolio.Accounts)).
		Msg("Portfolio stored")

	return nil
}

// Delete removes a portfolio.
func (s *PortfolioStore) Delete(ctx context.Context, email string) error {
	if err := s.store.Delete(email, models.Portfolio{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return ErrPortfolioNotFound
		}
		return fmt.Errorf("failed to delete portfolio %s: %w", email, err)
	}
	return nil
}

// Seed inserts portfolios that do not already exist. Used at startup to load
// the default tracked portfolios when the store is empty.
func (s *PortfolioStore) Seed(ctx context.Context, portfolios []models.Portfolio) error {
	seeded := 0
	for _, portfolio := range portfolios {
		if _, err := s.Get(ctx, portfolio.Email); err == nil {
			continue // Already present, leave user edits alone
		} else if !errors.Is(err, ErrPortfolioNotFound) {
			return err
		}

		if err := s.Put(ctx, portfolio); err != nil {
			return err
		}
		seeded++
	}

	if seeded > 0 {
		s.logger.Info().Int("count", seeded).Msg("Seeded default portfolios")
	}

	return nil
}
