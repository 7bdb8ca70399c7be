package gormstore

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmynk/homequest/internal/filter"
	"github.com/mmynk/homequest/internal/models"
	"github.com/mmynk/homequest/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func ptr[T any](v T) *T { return &v }

func newBuyer(owner, name string, email *string) *models.Buyer {
	return &models.Buyer{
		OwnerID:      owner,
		FullName:     name,
		Email:        email,
		Phone:        "9876543210",
		City:         models.CityMohali,
		PropertyType: models.PropertyApartment,
		Purpose:      models.PurposeBuy,
		Timeline:     models.TimelineExploring,
		Source:       models.SourceWebsite,
		Status:       models.StatusNew,
	}
}

func mustSpec(t *testing.T, raw string) filter.Spec {
	t.Helper()
	q, err := url.ParseQuery(raw)
	if err != nil {
		t.Fatalf("ParseQuery failed: %v", err)
	}
	spec, err := filter.Build(q, time.UTC)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return spec
}

func names(buyers []*models.Buyer) map[string]bool {
	out := make(map[string]bool, len(buyers))
	for _, b := range buyers {
		out[b.FullName] = true
	}
	return out
}

func TestBuyers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("CreateBuyer assigns ID and timestamps", func(t *testing.T) {
		b := newBuyer("owner-a", "Asha Verma", ptr("asha@example.com"))
		b.Tags = []string{"vip"}
		if err := store.CreateBuyer(ctx, b, nil); err != nil {
			t.Fatalf("CreateBuyer failed: %v", err)
		}
		if b.ID == "" {
			t.Error("Expected buyer ID to be generated")
		}
		if b.CreatedAt.IsZero() || b.UpdatedAt.IsZero() {
			t.Error("Expected timestamps to be set")
		}

		got, err := store.GetBuyer(ctx, "owner-a", b.ID)
		if err != nil {
			t.Fatalf("GetBuyer failed: %v", err)
		}
		if got.FullName != b.FullName || got.Email == nil || *got.Email != "asha@example.com" {
			t.Errorf("Unexpected buyer %+v", got)
		}
		if len(got.Tags) != 1 || got.Tags[0] != "vip" {
			t.Errorf("Expected tags to round trip, got %v", got.Tags)
		}
	})

	t.Run("GetBuyer hides other owners' buyers", func(t *testing.T) {
		b := newBuyer("owner-a", "Hidden", nil)
		if err := store.CreateBuyer(ctx, b, nil); err != nil {
			t.Fatalf("CreateBuyer failed: %v", err)
		}
		_, err := store.GetBuyer(ctx, "owner-b", b.ID)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("email is unique per owner", func(t *testing.T) {
		if err := store.CreateBuyer(ctx, newBuyer("owner-c", "First", ptr("dup@example.com")), nil); err != nil {
			t.Fatalf("CreateBuyer failed: %v", err)
		}
		err := store.CreateBuyer(ctx, newBuyer("owner-c", "Second", ptr("dup@example.com")), nil)
		if !errors.Is(err, storage.ErrDuplicate) {
			t.Errorf("Expected ErrDuplicate, got %v", err)
		}
		if err := store.CreateBuyer(ctx, newBuyer("owner-d", "Other owner", ptr("dup@example.com")), nil); err != nil {
			t.Errorf("Same email for another owner should succeed: %v", err)
		}
		for i := 0; i < 2; i++ {
			if err := store.CreateBuyer(ctx, newBuyer("owner-c", "No email", nil), nil); err != nil {
				t.Errorf("Buyers without email must not collide: %v", err)
			}
		}

		list, err := store.ListBuyers(ctx, "owner-c", filter.Spec{})
		if err != nil {
			t.Fatalf("ListBuyers failed: %v", err)
		}
		if len(list) != 3 {
			t.Errorf("Expected 3 buyers for owner-c, got %d", len(list))
		}
	})

	t.Run("CreateBuyer records creation history when asked", func(t *testing.T) {
		b := newBuyer("owner-e", "Tracked", nil)
		err := store.CreateBuyer(ctx, b, func(stored *models.Buyer) *models.BuyerHistory {
			return &models.BuyerHistory{
				ChangedBy: stored.OwnerID,
				Diff:      models.HistoryDiff{Action: models.ActionCreated, CreatedData: stored},
			}
		})
		if err != nil {
			t.Fatalf("CreateBuyer failed: %v", err)
		}
		entries, err := store.ListHistory(ctx, "owner-e", b.ID)
		if err != nil {
			t.Fatalf("ListHistory failed: %v", err)
		}
		if len(entries) != 1 || entries[0].Diff.Action != models.ActionCreated {
			t.Fatalf("Expected one CREATED entry, got %+v", entries)
		}
		if entries[0].Diff.CreatedData == nil || entries[0].Diff.CreatedData.ID != b.ID {
			t.Errorf("Expected snapshot of the stored buyer, got %+v", entries[0].Diff.CreatedData)
		}
	})
}

func TestListBuyersFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	const owner = "owner-f"

	seed := []struct {
		name     string
		min, max *int
		created  time.Time
		notes    *string
		tags     []string
		city     models.City
	}{
		{"Inside", ptr(5000000), ptr(8000000), time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), ptr("50% down payment"), []string{"vip"}, models.CityMohali},
		{"Low min", ptr(4000000), ptr(8000000), time.Date(2024, 1, 15, 23, 59, 59, int(999*time.Millisecond), time.UTC), ptr("500 down"), []string{"Hot"}, models.CityChandigarh},
		{"High max", ptr(6000000), ptr(9000000), time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), nil, []string{"vipers"}, models.CityMohali},
		{"No budget", nil, nil, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), ptr("call_back"), nil, models.CityZirakpur},
	}
	for _, s := range seed {
		b := newBuyer(owner, s.name, nil)
		b.BudgetMin, b.BudgetMax = s.min, s.max
		b.CreatedAt = s.created
		b.Notes = s.notes
		b.Tags = s.tags
		b.City = s.city
		if err := store.CreateBuyer(ctx, b, nil); err != nil {
			t.Fatalf("CreateBuyer failed: %v", err)
		}
	}
	intruder := newBuyer("owner-g", "Intruder", nil)
	intruder.Tags = []string{"vip"}
	intruder.Notes = ptr("50% down payment")
	if err := store.CreateBuyer(ctx, intruder, nil); err != nil {
		t.Fatalf("CreateBuyer failed: %v", err)
	}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"no filter newest first", "", []string{"No budget", "High max", "Low min", "Inside"}},
		{"budget bounds", "budgetMin=5000000&budgetMax=8000000", []string{"Inside"}},
		{"inclusive end of day", "dateTo=2024-01-15", []string{"Low min", "Inside"}},
		{"date range", "dateFrom=2024-01-15&dateTo=2024-01-16", []string{"High max", "Low min"}},
		{"search literal percent", "search=50%25", []string{"Inside"}},
		{"search literal underscore", "search=call_", []string{"No budget"}},
		{"search case-insensitive", "search=INSIDE", []string{"Inside"}},
		{"search phone", "search=98765", []string{"No budget", "High max", "Low min", "Inside"}},
		{"tag exact element", "tags=VIP", []string{"Inside"}},
		{"any tag", "tags=hot,vipers", []string{"High max", "Low min"}},
		{"city", "city=mohali", []string{"High max", "Inside"}},
		{"city all", "city=all", []string{"No budget", "High max", "Low min", "Inside"}},
		{"combined", "city=Mohali&tags=vip", []string{"Inside"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListBuyers(ctx, owner, mustSpec(t, tt.query))
			if err != nil {
				t.Fatalf("ListBuyers failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, names(got))
			}
			for i, b := range got {
				if b.FullName != tt.want[i] {
					t.Errorf("Position %d: expected %s, got %s", i, tt.want[i], b.FullName)
				}
			}
		})
	}
}

func TestListBuyersNonASCIICase(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	const owner = "owner-u"

	b := newBuyer(owner, "Émile Zoë", ptr("emile@example.com"))
	b.Tags = []string{"Ürgent"}
	if err := store.CreateBuyer(ctx, b, nil); err != nil {
		t.Fatalf("CreateBuyer failed: %v", err)
	}
	if err := store.CreateBuyer(ctx, newBuyer(owner, "Other", nil), nil); err != nil {
		t.Fatalf("CreateBuyer failed: %v", err)
	}

	queries := []string{
		"search=" + url.QueryEscape("Émile"),
		"search=" + url.QueryEscape("émile"),
		"search=" + url.QueryEscape("ZOË"),
		"search=mile",
		"tags=" + url.QueryEscape("Ürgent"),
		"tags=" + url.QueryEscape("ürgent"),
	}
	for _, query := range queries {
		t.Run(query, func(t *testing.T) {
			got, err := store.ListBuyers(ctx, owner, mustSpec(t, query))
			if err != nil {
				t.Fatalf("ListBuyers failed: %v", err)
			}
			if len(got) != 1 || got[0].FullName != "Émile Zoë" {
				t.Errorf("Expected only Émile Zoë, got %v", names(got))
			}
		})
	}
}

func TestMutateBuyer(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	const owner = "owner-m"

	create := func(t *testing.T, name string) *models.Buyer {
		t.Helper()
		b := newBuyer(owner, name, ptr(name+"@example.com"))
		if err := store.CreateBuyer(ctx, b, nil); err != nil {
			t.Fatalf("CreateBuyer failed: %v", err)
		}
		return b
	}

	t.Run("update appends history atomically", func(t *testing.T) {
		b := create(t, "status")
		updated, err := store.MutateBuyer(ctx, owner, b.ID, func(cur *models.Buyer) (storage.Mutation, error) {
			next := cur.Clone()
			next.Status = models.StatusQualified
			return storage.Mutation{
				Update: next,
				History: &models.BuyerHistory{
					ChangedBy: owner,
					Diff: models.HistoryDiff{
						Action:       models.ActionStatusUpdated,
						StatusChange: &models.StatusChange{From: cur.Status, To: next.Status},
					},
				},
			}, nil
		})
		if err != nil {
			t.Fatalf("MutateBuyer failed: %v", err)
		}
		if updated.Status != models.StatusQualified {
			t.Errorf("Expected Qualified, got %s", updated.Status)
		}

		got, _ := store.GetBuyer(ctx, owner, b.ID)
		if got.Status != models.StatusQualified {
			t.Errorf("Stored status: expected Qualified, got %s", got.Status)
		}
		if !got.CreatedAt.Equal(b.CreatedAt) {
			t.Errorf("CreatedAt changed: %v -> %v", b.CreatedAt, got.CreatedAt)
		}

		entries, _ := store.ListHistory(ctx, owner, b.ID)
		if len(entries) != 1 {
			t.Fatalf("Expected 1 history entry, got %d", len(entries))
		}
		sc := entries[0].Diff.StatusChange
		if sc == nil || sc.From != models.StatusNew || sc.To != models.StatusQualified {
			t.Errorf("Unexpected status change %+v", sc)
		}
	})

	t.Run("error from fn rolls back", func(t *testing.T) {
		b := create(t, "rollback")
		boom := errors.New("boom")
		_, err := store.MutateBuyer(ctx, owner, b.ID, func(cur *models.Buyer) (storage.Mutation, error) {
			return storage.Mutation{}, boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("Expected boom, got %v", err)
		}
		entries, _ := store.ListHistory(ctx, owner, b.ID)
		if len(entries) != 0 {
			t.Errorf("Expected no history, got %d", len(entries))
		}
	})

	t.Run("update to a taken email is a duplicate", func(t *testing.T) {
		create(t, "taken")
		b := create(t, "mover")
		_, err := store.MutateBuyer(ctx, owner, b.ID, func(cur *models.Buyer) (storage.Mutation, error) {
			next := cur.Clone()
			next.Email = ptr("taken@example.com")
			return storage.Mutation{Update: next}, nil
		})
		if !errors.Is(err, storage.ErrDuplicate) {
			t.Errorf("Expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("delete keeps a snapshot in history", func(t *testing.T) {
		b := create(t, "gone")
		deleted, err := store.MutateBuyer(ctx, owner, b.ID, func(cur *models.Buyer) (storage.Mutation, error) {
			return storage.Mutation{
				Delete: true,
				History: &models.BuyerHistory{
					ChangedBy: owner,
					Diff:      models.HistoryDiff{Action: models.ActionDeleted, DeletedData: cur},
				},
			}, nil
		})
		if err != nil {
			t.Fatalf("MutateBuyer failed: %v", err)
		}
		if deleted.ID != b.ID {
			t.Errorf("Expected pre-delete snapshot, got %+v", deleted)
		}
		if _, err := store.GetBuyer(ctx, owner, b.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
		entries, _ := store.ListHistory(ctx, owner, b.ID)
		if len(entries) != 1 || entries[0].Diff.DeletedData == nil {
			t.Fatalf("Expected DELETED entry with snapshot, got %+v", entries)
		}
		if entries[0].Diff.DeletedData.FullName != "gone" {
			t.Errorf("Unexpected snapshot %+v", entries[0].Diff.DeletedData)
		}
	})

	t.Run("other owner cannot mutate", func(t *testing.T) {
		b := create(t, "guarded")
		called := false
		_, err := store.MutateBuyer(ctx, "intruder", b.ID, func(cur *models.Buyer) (storage.Mutation, error) {
			called = true
			return storage.Mutation{Delete: true}, nil
		})
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		if called {
			t.Error("fn must not run for a buyer the caller does not own")
		}
	})
}

func TestBulkInsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	const owner = "owner-i"

	if err := store.CreateBuyer(ctx, newBuyer(owner, "Existing", ptr("a@example.com")), nil); err != nil {
		t.Fatalf("CreateBuyer failed: %v", err)
	}

	found, err := store.ExistingEmails(ctx, owner, []string{"a@example.com", "b@example.com"})
	if err != nil {
		t.Fatalf("ExistingEmails failed: %v", err)
	}
	if !found["a@example.com"] || found["b@example.com"] {
		t.Errorf("Unexpected existing emails %v", found)
	}

	var batch []*models.Buyer
	for i := 0; i < 150; i++ {
		batch = append(batch, newBuyer(owner, "Bulk", nil))
	}
	batch = append(batch, newBuyer(owner, "Collides", ptr("a@example.com")))

	inserted, err := store.InsertBuyers(ctx, batch)
	if err != nil {
		t.Fatalf("InsertBuyers failed: %v", err)
	}
	if inserted != 150 {
		t.Errorf("Expected 150 inserted, got %d", inserted)
	}

	all, _ := store.ListBuyers(ctx, owner, filter.Spec{})
	if len(all) != 151 {
		t.Errorf("Expected 151 buyers, got %d", len(all))
	}
}

func TestBuyerStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	const owner = "owner-s"
	now := time.Now().UTC()

	seed := []struct {
		status  models.Status
		created time.Time
	}{
		{models.StatusNew, now.Add(-time.Hour)},
		{models.StatusNew, now.Add(-30 * 24 * time.Hour)},
		{models.StatusConverted, now.Add(-2 * time.Hour)},
		{models.StatusDropped, now.Add(-40 * 24 * time.Hour)},
		{models.StatusVisited, now.Add(-3 * 24 * time.Hour)},
	}
	for _, s := range seed {
		b := newBuyer(owner, "Stat", nil)
		b.Status = s.status
		b.CreatedAt = s.created
		if err := store.CreateBuyer(ctx, b, nil); err != nil {
			t.Fatalf("CreateBuyer failed: %v", err)
		}
	}
	if err := store.CreateBuyer(ctx, newBuyer("someone-else", "Other", nil), nil); err != nil {
		t.Fatalf("CreateBuyer failed: %v", err)
	}

	stats, err := store.BuyerStats(ctx, owner, now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("BuyerStats failed: %v", err)
	}
	if stats.Total != 5 {
		t.Errorf("Expected total 5, got %d", stats.Total)
	}
	if stats.RecentlyCreated != 3 {
		t.Errorf("Expected 3 recent, got %d", stats.RecentlyCreated)
	}
	if stats.Pending != 3 {
		t.Errorf("Expected 3 pending, got %d", stats.Pending)
	}
	if stats.ByStatus[models.StatusNew] != 2 || stats.ByStatus[models.StatusConverted] != 1 {
		t.Errorf("Unexpected distribution %v", stats.ByStatus)
	}
}

func TestUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := models.NewUser("agent@example.com", "Agent", "hash")
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := store.GetUserByEmail(ctx, "agent@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got.ID != user.ID || got.PasswordHash != "hash" {
		t.Errorf("Unexpected user %+v", got)
	}

	if _, err := store.GetUserByID(ctx, user.ID); err != nil {
		t.Errorf("GetUserByID failed: %v", err)
	}

	err = store.CreateUser(ctx, models.NewUser("agent@example.com", "Again", "hash"))
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate, got %v", err)
	}

	if _, err := store.GetUserByEmail(ctx, "missing@example.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
