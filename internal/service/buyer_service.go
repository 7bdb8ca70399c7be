// Package service implements the buyer, import/export and account operations
// on top of storage. Handlers decode transport details; services own
// validation, ownership and history.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/mmynk/homequest/internal/filter"
	"github.com/mmynk/homequest/internal/leads"
	"github.com/mmynk/homequest/internal/models"
	"github.com/mmynk/homequest/internal/storage"
)

const recentWindow = 7 * 24 * time.Hour

// BuyerOptions tunes a BuyerService.
type BuyerOptions struct {
	// Location interprets date-only filter bounds. Defaults to time.Local.
	Location *time.Location
	// RecordCreateHistory appends a CREATED entry for every new buyer.
	RecordCreateHistory bool
	// Now defaults to time.Now.
	Now func() time.Time
}

func (o BuyerOptions) withDefaults() BuyerOptions {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// BuyerService manages an owner's buyers and their history.
type BuyerService struct {
	store storage.BuyerStore
	opts  BuyerOptions
}

// NewBuyerService creates a new BuyerService with the given storage backend.
func NewBuyerService(store storage.BuyerStore, opts BuyerOptions) *BuyerService {
	return &BuyerService{store: store, opts: opts.withDefaults()}
}

// Add validates a JSON buyer and stores it for owner.
func (s *BuyerService) Add(ctx context.Context, owner string, body io.Reader) (*models.Buyer, error) {
	slog.Info("AddBuyer request received", "owner_id", owner)

	in, err := leads.DecodeJSON(body)
	if err != nil {
		return nil, invalidInput(err)
	}

	if in.Email != nil {
		existing, err := s.store.ExistingEmails(ctx, owner, []string{*in.Email})
		if err != nil {
			slog.Error("AddBuyer failed", "error", err)
			return nil, internalError(err)
		}
		if existing[*in.Email] {
			return nil, duplicateEmail(nil)
		}
	}

	buyer := in.Buyer(owner)
	var history func(*models.Buyer) *models.BuyerHistory
	if s.opts.RecordCreateHistory {
		history = func(stored *models.Buyer) *models.BuyerHistory {
			return s.entry(owner, models.HistoryDiff{
				Action:      models.ActionCreated,
				CreatedData: stored,
			})
		}
	}

	if err := s.store.CreateBuyer(ctx, buyer, history); err != nil {
		if storage.IsDuplicate(err) {
			return nil, duplicateEmail(err)
		}
		slog.Error("AddBuyer failed", "error", err)
		return nil, internalError(err)
	}

	slog.Info("Buyer created", "buyer_id", buyer.ID)
	return buyer, nil
}

// List returns the owner's buyers matching the query filters, newest first.
func (s *BuyerService) List(ctx context.Context, owner string, q url.Values) ([]*models.Buyer, error) {
	slog.Info("ListBuyers request received", "owner_id", owner, "query", q.Encode())

	spec, err := filter.Build(q, s.opts.Location)
	if err != nil {
		return nil, invalidFilter(err)
	}

	buyers, err := s.store.ListBuyers(ctx, owner, spec)
	if err != nil {
		slog.Error("ListBuyers failed", "error", err)
		return nil, internalError(err)
	}

	slog.Info("ListBuyers successful", "count", len(buyers))
	return buyers, nil
}

// Get returns one buyer owned by owner.
func (s *BuyerService) Get(ctx context.Context, owner, id string) (*models.Buyer, error) {
	slog.Info("GetBuyer request received", "buyer_id", id)

	if id == "" {
		return nil, missingID()
	}
	buyer, err := s.store.GetBuyer(ctx, owner, id)
	if err != nil {
		return nil, s.storeError("GetBuyer", err)
	}
	return buyer, nil
}

// Update applies a partial JSON update. changed is false, and no history is
// written, when the merged record equals the stored one.
func (s *BuyerService) Update(ctx context.Context, owner, id string, body io.Reader) (buyer *models.Buyer, changed bool, err error) {
	slog.Info("UpdateBuyer request received", "buyer_id", id)

	if id == "" {
		return nil, false, missingID()
	}
	patch, err := leads.DecodePatch(body)
	if err != nil {
		return nil, false, invalidInput(err)
	}

	buyer, err = s.store.MutateBuyer(ctx, owner, id, func(current *models.Buyer) (storage.Mutation, error) {
		next, err := patch.Apply(current)
		if err != nil {
			return storage.Mutation{}, err
		}
		changes := leads.Diff(current, next)
		if len(changes) == 0 {
			return storage.Mutation{}, nil
		}
		changed = true
		return storage.Mutation{
			Update: next,
			History: s.entry(owner, models.HistoryDiff{
				Action:  models.ActionUpdated,
				Changes: changes,
			}),
		}, nil
	})
	if err != nil {
		var verr *leads.ValidationError
		if errors.As(err, &verr) {
			return nil, false, invalidInput(verr)
		}
		return nil, false, s.storeError("UpdateBuyer", err)
	}

	slog.Info("UpdateBuyer successful", "buyer_id", id, "changed", changed)
	return buyer, changed, nil
}

// UpdateStatus moves a buyer to a new status. Every call records a
// STATUS_UPDATED entry, even when the status is unchanged.
func (s *BuyerService) UpdateStatus(ctx context.Context, owner, id, status string) (*models.Buyer, error) {
	slog.Info("UpdateStatus request received", "buyer_id", id, "status", status)

	if id == "" || strings.TrimSpace(status) == "" {
		return nil, NewError(CodeInvalidArgument, nil).
			WithMessage("Buyer ID and status are required", "")
	}
	to, ok := models.Statuses.Parse(status)
	if !ok {
		return nil, NewError(CodeInvalidArgument, nil).
			WithMessage("Invalid status value", "Status must be one of: "+strings.Join(models.Statuses.Strings(), ", "))
	}

	buyer, err := s.store.MutateBuyer(ctx, owner, id, func(current *models.Buyer) (storage.Mutation, error) {
		next := current.Clone()
		next.Status = to
		return storage.Mutation{
			Update: next,
			History: s.entry(owner, models.HistoryDiff{
				Action:       models.ActionStatusUpdated,
				StatusChange: &models.StatusChange{From: current.Status, To: to},
			}),
		}, nil
	})
	if err != nil {
		return nil, s.storeError("UpdateStatus", err)
	}

	slog.Info("Status updated", "buyer_id", id, "status", to)
	return buyer, nil
}

// Delete removes a buyer, recording a DELETED entry with its last state.
func (s *BuyerService) Delete(ctx context.Context, owner, id string) (*models.Buyer, error) {
	slog.Info("DeleteBuyer request received", "buyer_id", id)

	if id == "" {
		return nil, missingID()
	}
	deleted, err := s.store.MutateBuyer(ctx, owner, id, func(current *models.Buyer) (storage.Mutation, error) {
		return storage.Mutation{
			Delete: true,
			History: s.entry(owner, models.HistoryDiff{
				Action:      models.ActionDeleted,
				DeletedData: current,
			}),
		}, nil
	})
	if err != nil {
		return nil, s.storeError("DeleteBuyer", err)
	}

	slog.Info("Buyer deleted", "buyer_id", id)
	return deleted, nil
}

// History returns the entries owner recorded for a buyer, oldest first.
// Entries of deleted buyers remain readable.
func (s *BuyerService) History(ctx context.Context, owner, id string) ([]*models.BuyerHistory, error) {
	slog.Info("History request received", "buyer_id", id)

	if id == "" {
		return nil, missingID()
	}
	entries, err := s.store.ListHistory(ctx, owner, id)
	if err != nil {
		slog.Error("History failed", "error", err)
		return nil, internalError(err)
	}
	return entries, nil
}

// Stats summarizes the owner's buyers.
func (s *BuyerService) Stats(ctx context.Context, owner string) (*models.BuyerStats, error) {
	slog.Info("Stats request received", "owner_id", owner)

	stats, err := s.store.BuyerStats(ctx, owner, s.opts.Now().Add(-recentWindow))
	if err != nil {
		slog.Error("Stats failed", "error", err)
		return nil, internalError(err).WithMessage("Internal server error", "Failed to fetch statistics")
	}
	return stats, nil
}

func (s *BuyerService) entry(owner string, diff models.HistoryDiff) *models.BuyerHistory {
	now := s.opts.Now().UTC()
	diff.Timestamp = now
	return &models.BuyerHistory{
		ChangedBy: owner,
		ChangedAt: now,
		Diff:      diff,
	}
}

// storeError maps storage failures on a single buyer.
func (s *BuyerService) storeError(op string, err error) *Error {
	switch {
	case storage.IsNotFound(err):
		return NewError(CodeNotFound, err).WithMessage(
			"Buyer not found or you don't have permission to access this buyer", "")
	case storage.IsDuplicate(err):
		return duplicateEmail(err)
	default:
		slog.Error(op+" failed", "error", err)
		return internalError(err)
	}
}

func missingID() *Error {
	return NewError(CodeInvalidArgument, nil).WithMessage("Buyer ID is required", "")
}

func duplicateEmail(err error) *Error {
	return NewError(CodeAlreadyExists, err).WithMessage(
		"Buyer with this email already exists",
		"A buyer with this email address is already in your database")
}

// invalidInput maps decoding and validation failures of a buyer body.
func invalidInput(err error) *Error {
	var verr *leads.ValidationError
	if errors.As(err, &verr) {
		e := NewError(CodeInvalidArgument, err).WithMessage("Invalid input data", "One or more fields failed validation")
		e.Fields = verr.Fields
		return e
	}
	if errors.Is(err, leads.ErrMalformedBody) {
		return NewError(CodeInvalidArgument, err).WithMessage("Invalid request body", "Request body must be a JSON object")
	}
	return internalError(err)
}

func invalidFilter(err error) *Error {
	var ferr *filter.Error
	if errors.As(err, &ferr) {
		e := NewError(CodeInvalidArgument, err).WithMessage("Invalid filter", ferr.Error())
		e.Fields = map[string][]string{ferr.Param: {ferr.Reason}}
		return e
	}
	return internalError(err)
}
