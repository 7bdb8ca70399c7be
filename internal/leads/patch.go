package leads

import (
	"bytes"
	"encoding/json"
	"io"
	"reflect"

	"github.com/mmynk/homequest/internal/models"
)

// Field is one member of a partial update. Set reports whether the key was
// present in the request; Null whether it was an explicit JSON null.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		f.Null = true
		return nil
	}
	return json.Unmarshal(b, &f.Value)
}

// Patch is a partial update. Absent keys leave the stored value untouched;
// null (or an empty string) clears an optional field.
type Patch struct {
	FullName     Field[string]   `json:"fullName"`
	Email        Field[string]   `json:"email"`
	Phone        Field[string]   `json:"phone"`
	City         Field[string]   `json:"city"`
	PropertyType Field[string]   `json:"propertyType"`
	BHK          Field[string]   `json:"bhk"`
	Purpose      Field[string]   `json:"purpose"`
	BudgetMin    Field[int]      `json:"budgetMin"`
	BudgetMax    Field[int]      `json:"budgetMax"`
	Timeline     Field[string]   `json:"timeline"`
	Source       Field[string]   `json:"source"`
	Status       Field[string]   `json:"status"`
	Notes        Field[string]   `json:"notes"`
	Tags         Field[[]string] `json:"tags"`
}

// DecodePatch reads a partial update from a JSON body. Unknown keys such as
// id or ownerId are ignored.
func DecodePatch(r io.Reader) (Patch, error) {
	var p Patch
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return Patch{}, decodeError(err)
	}
	return p, nil
}

// Apply merges the patch into a copy of current and validates the result.
// current is never modified.
func (p Patch) Apply(current *models.Buyer) (*models.Buyer, error) {
	in := InputFrom(current)
	verr := &ValidationError{}

	required := func(name string, f Field[string], dst *string) {
		if !f.Set {
			return
		}
		if f.Null {
			verr.add(name, "cannot be null")
			return
		}
		*dst = f.Value
	}
	required("fullName", p.FullName, &in.FullName)
	required("phone", p.Phone, &in.Phone)

	enum := func(name string, f Field[string], set func(string)) {
		if !f.Set {
			return
		}
		if f.Null {
			verr.add(name, "cannot be null")
			return
		}
		set(f.Value)
	}
	enum("city", p.City, func(s string) { in.City = models.Cities.Canonical(s) })
	enum("propertyType", p.PropertyType, func(s string) { in.PropertyType = models.PropertyTypes.Canonical(s) })
	enum("purpose", p.Purpose, func(s string) { in.Purpose = models.Purposes.Canonical(s) })
	enum("timeline", p.Timeline, func(s string) { in.Timeline = models.Timelines.Canonical(s) })
	enum("source", p.Source, func(s string) { in.Source = models.Sources.Canonical(s) })
	enum("status", p.Status, func(s string) { in.Status = models.Statuses.Canonical(s) })

	if p.Email.Set {
		in.Email = nil
		if !p.Email.Null {
			in.Email = optionalString(p.Email.Value)
		}
	}
	if p.Notes.Set {
		in.Notes = nil
		if !p.Notes.Null {
			in.Notes = optionalString(p.Notes.Value)
		}
	}
	if p.BHK.Set {
		in.BHK = nil
		if !p.BHK.Null {
			if s := optionalString(p.BHK.Value); s != nil {
				v := models.BHKs.Canonical(*s)
				in.BHK = &v
			}
		}
	}
	if p.BudgetMin.Set {
		in.BudgetMin = nil
		if !p.BudgetMin.Null {
			v := p.BudgetMin.Value
			in.BudgetMin = &v
		}
	}
	if p.BudgetMax.Set {
		in.BudgetMax = nil
		if !p.BudgetMax.Null {
			v := p.BudgetMax.Value
			in.BudgetMax = &v
		}
	}
	if p.Tags.Set {
		in.Tags = []string{}
		if !p.Tags.Null {
			in.Tags = cleanTags(p.Tags.Value)
		}
	}

	if err := Validate(in); err != nil {
		fieldErrs, ok := err.(*ValidationError)
		if !ok {
			return nil, err
		}
		verr.merge(fieldErrs)
	}
	if !verr.empty() {
		return nil, verr
	}

	next := in.Buyer(current.OwnerID)
	next.ID = current.ID
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = current.UpdatedAt
	return next, nil
}

// diffFields lists the comparable buyer fields under their JSON names.
var diffFields = []struct {
	name string
	get  func(*models.Buyer) any
}{
	{"fullName", func(b *models.Buyer) any { return b.FullName }},
	{"email", func(b *models.Buyer) any { return deref(b.Email) }},
	{"phone", func(b *models.Buyer) any { return b.Phone }},
	{"city", func(b *models.Buyer) any { return string(b.City) }},
	{"propertyType", func(b *models.Buyer) any { return string(b.PropertyType) }},
	{"bhk", func(b *models.Buyer) any { return deref(b.BHK) }},
	{"purpose", func(b *models.Buyer) any { return string(b.Purpose) }},
	{"budgetMin", func(b *models.Buyer) any { return deref(b.BudgetMin) }},
	{"budgetMax", func(b *models.Buyer) any { return deref(b.BudgetMax) }},
	{"timeline", func(b *models.Buyer) any { return string(b.Timeline) }},
	{"source", func(b *models.Buyer) any { return string(b.Source) }},
	{"status", func(b *models.Buyer) any { return string(b.Status) }},
	{"notes", func(b *models.Buyer) any { return deref(b.Notes) }},
	{"tags", func(b *models.Buyer) any { return append([]string{}, b.Tags...) }},
}

// Diff returns the fields whose values differ between before and after.
// The result is empty, never nil, when nothing changed.
func Diff(before, after *models.Buyer) map[string]models.FieldChange {
	changes := make(map[string]models.FieldChange)
	for _, f := range diffFields {
		old, cur := f.get(before), f.get(after)
		if !reflect.DeepEqual(old, cur) {
			changes[f.name] = models.FieldChange{Old: old, New: cur}
		}
	}
	return changes
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
