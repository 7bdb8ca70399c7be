package models

import "time"

// Buyer is a lead: a prospective property buyer or renter tracked by its owner.
// Email, when present, is unique per owner (idx_buyers_owner_email).
type Buyer struct {
	// ID is the unique identifier for the buyer (UUID format).
	ID string `gorm:"primaryKey;size:36" json:"id"`

	// OwnerID is the user who created the buyer and may mutate it.
	OwnerID string `gorm:"size:36;not null;index;uniqueIndex:idx_buyers_owner_email,priority:1" json:"ownerId"`

	FullName string  `gorm:"size:80;not null" json:"fullName"`
	Email    *string `gorm:"size:254;uniqueIndex:idx_buyers_owner_email,priority:2" json:"email"`
	Phone    string  `gorm:"size:15;not null" json:"phone"`

	City         City         `gorm:"size:20;not null;index" json:"city"`
	PropertyType PropertyType `gorm:"size:20;not null" json:"propertyType"`
	BHK          *BHK         `gorm:"column:bhk;size:10" json:"bhk"`
	Purpose      Purpose      `gorm:"size:10;not null" json:"purpose"`

	// BudgetMin and BudgetMax are positive amounts; BudgetMin <= BudgetMax is not enforced.
	BudgetMin *int `json:"budgetMin"`
	BudgetMax *int `json:"budgetMax"`

	Timeline Timeline `gorm:"size:20;not null" json:"timeline"`
	Source   Source   `gorm:"size:20;not null" json:"source"`
	Status   Status   `gorm:"size:20;not null;index" json:"status"`

	Notes *string  `gorm:"size:1000" json:"notes"`
	Tags  []string `gorm:"type:text;serializer:json" json:"tags"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy, so snapshots stored in history never alias a
// record that is later mutated.
func (b *Buyer) Clone() *Buyer {
	c := *b
	c.Email = clonePtr(b.Email)
	c.BHK = clonePtr(b.BHK)
	c.BudgetMin = clonePtr(b.BudgetMin)
	c.BudgetMax = clonePtr(b.BudgetMax)
	c.Notes = clonePtr(b.Notes)
	if b.Tags != nil {
		c.Tags = append([]string(nil), b.Tags...)
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// BuyerStats summarizes one owner's buyers.
type BuyerStats struct {
	Total int64 `json:"totalBuyers"`
	// RecentlyCreated counts buyers created in the trailing seven days.
	RecentlyCreated int64 `json:"recentImports"`
	// Pending counts buyers whose status is not Converted or Dropped.
	Pending  int64            `json:"pendingDeals"`
	ByStatus map[Status]int64 `json:"statusDistribution"`
}
