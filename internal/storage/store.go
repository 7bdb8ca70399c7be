// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"time"

	"github.com/mmynk/homequest/internal/filter"
	"github.com/mmynk/homequest/internal/models"
)

// Mutation is what a MutateFunc decides to do with the buyer it was handed.
// The zero Mutation writes nothing.
type Mutation struct {
	// Update, when non-nil, replaces the stored buyer.
	Update *models.Buyer
	// Delete removes the buyer. It takes precedence over Update.
	Delete bool
	// History, when non-nil, is appended in the same transaction.
	History *models.BuyerHistory
}

// MutateFunc inspects the current buyer and returns the change to apply.
// Returning an error aborts the transaction.
type MutateFunc func(current *models.Buyer) (Mutation, error)

// BuyerStore persists buyers and their history. Every per-record method takes
// the acting owner; a buyer owned by someone else is reported as ErrNotFound.
type BuyerStore interface {
	// CreateBuyer assigns ID and timestamps and persists b. When history is
	// non-nil the entry it returns for the stored buyer is appended in the
	// same transaction. Returns ErrDuplicate when the owner already has a
	// buyer with the same email.
	CreateBuyer(ctx context.Context, b *models.Buyer, history func(*models.Buyer) *models.BuyerHistory) error

	// GetBuyer loads one buyer owned by ownerID.
	GetBuyer(ctx context.Context, ownerID, id string) (*models.Buyer, error)

	// ListBuyers returns the owner's buyers matching spec, newest first.
	ListBuyers(ctx context.Context, ownerID string, spec filter.Spec) ([]*models.Buyer, error)

	// MutateBuyer locks the buyer, calls fn and applies the returned
	// Mutation atomically. It returns the buyer as stored afterwards, or the
	// pre-delete snapshot when the buyer was deleted.
	MutateBuyer(ctx context.Context, ownerID, id string, fn MutateFunc) (*models.Buyer, error)

	// ExistingEmails reports which of emails the owner already uses.
	ExistingEmails(ctx context.Context, ownerID string, emails []string) (map[string]bool, error)

	// InsertBuyers bulk inserts buyers in one transaction, skipping rows that
	// collide on a unique index, and returns the number inserted.
	InsertBuyers(ctx context.Context, buyers []*models.Buyer) (int64, error)

	// ListHistory returns the entries recorded by ownerID for buyerID, oldest
	// first.
	ListHistory(ctx context.Context, ownerID, buyerID string) ([]*models.BuyerHistory, error)

	// BuyerStats summarizes the owner's buyers; RecentlyCreated counts those
	// created at or after since.
	BuyerStats(ctx context.Context, ownerID string, since time.Time) (*models.BuyerStats, error)
}

// UserStore persists accounts.
type UserStore interface {
	// CreateUser returns ErrDuplicate when the email is taken.
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Store defines the interface for storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	BuyerStore
	UserStore

	// Close releases any resources held by the store.
	Close() error
}
