package leads

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mmynk/homequest/internal/models"
)

// Input is the canonical shape of a buyer before persistence. Enum fields
// hold canonical labels once decoded; unknown spellings are kept verbatim so
// Validate can report them.
type Input struct {
	FullName     string              `json:"fullName" validate:"min=2,max=80"`
	Email        *string             `json:"email" validate:"omitempty,email"`
	Phone        string              `json:"phone" validate:"min=10,max=15"`
	City         models.City         `json:"city" validate:"city"`
	PropertyType models.PropertyType `json:"propertyType" validate:"propertytype"`
	BHK          *models.BHK         `json:"bhk" validate:"omitempty,bhk"`
	Purpose      models.Purpose      `json:"purpose" validate:"purpose"`
	BudgetMin    *int                `json:"budgetMin" validate:"omitempty,gt=0"`
	BudgetMax    *int                `json:"budgetMax" validate:"omitempty,gt=0"`
	Timeline     models.Timeline     `json:"timeline" validate:"timeline"`
	Source       models.Source       `json:"source" validate:"source"`
	Status       models.Status       `json:"status" validate:"status"`
	Notes        *string             `json:"notes" validate:"omitempty,max=1000"`
	Tags         []string            `json:"tags"`
}

// wireInput is the JSON request body as sent by clients.
type wireInput struct {
	FullName     string   `json:"fullName"`
	Email        *string  `json:"email"`
	Phone        string   `json:"phone"`
	City         string   `json:"city"`
	PropertyType string   `json:"propertyType"`
	BHK          *string  `json:"bhk"`
	Purpose      string   `json:"purpose"`
	BudgetMin    *int     `json:"budgetMin"`
	BudgetMax    *int     `json:"budgetMax"`
	Timeline     string   `json:"timeline"`
	Source       string   `json:"source"`
	Status       *string  `json:"status"`
	Notes        *string  `json:"notes"`
	Tags         []string `json:"tags"`
}

// DecodeJSON reads a JSON buyer and validates it.
func DecodeJSON(r io.Reader) (Input, error) {
	var w wireInput
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return Input{}, decodeError(err)
	}

	in := Input{
		FullName:     w.FullName,
		Email:        optional(w.Email),
		Phone:        w.Phone,
		City:         models.Cities.Canonical(w.City),
		PropertyType: models.PropertyTypes.Canonical(w.PropertyType),
		Purpose:      models.Purposes.Canonical(w.Purpose),
		BudgetMin:    w.BudgetMin,
		BudgetMax:    w.BudgetMax,
		Timeline:     models.Timelines.Canonical(w.Timeline),
		Source:       models.Sources.Canonical(w.Source),
		Status:       models.StatusNew,
		Notes:        optional(w.Notes),
		Tags:         cleanTags(w.Tags),
	}
	if bhk := optional(w.BHK); bhk != nil {
		v := models.BHKs.Canonical(*bhk)
		in.BHK = &v
	}
	if status := optional(w.Status); status != nil {
		in.Status = models.Statuses.Canonical(*status)
	}

	if err := Validate(in); err != nil {
		return Input{}, err
	}
	return in, nil
}

// decodeError turns JSON type mismatches into field errors; anything else is
// a malformed body.
func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		verr := &ValidationError{}
		verr.add(typeErr.Field, fmt.Sprintf("must be of type %s", typeErr.Type))
		return verr
	}
	return fmt.Errorf("%w: %v", ErrMalformedBody, err)
}

// ErrMalformedBody is returned when a request body is not valid JSON.
var ErrMalformedBody = errors.New("malformed request body")

// DecodeRow converts one CSV record, keyed by canonical column name, into a
// validated Input. Numeric columns arrive as strings: empty means absent and
// anything that is not a whole number is a field error.
func DecodeRow(row map[string]string) (Input, error) {
	verr := &ValidationError{}

	in := Input{
		FullName:     row["fullName"],
		Email:        optionalString(row["email"]),
		Phone:        row["phone"],
		City:         models.Cities.Canonical(row["city"]),
		PropertyType: models.PropertyTypes.Canonical(row["propertyType"]),
		Purpose:      models.Purposes.Canonical(row["purpose"]),
		Timeline:     models.Timelines.Canonical(row["timeline"]),
		Source:       models.Sources.Canonical(row["source"]),
		Status:       models.StatusNew,
		Notes:        optionalString(row["notes"]),
		Tags:         SplitTags(row["tags"]),
	}
	if bhk := optionalString(row["bhk"]); bhk != nil {
		v := models.BHKs.Canonical(*bhk)
		in.BHK = &v
	}
	if status := optionalString(row["status"]); status != nil {
		in.Status = models.Statuses.Canonical(*status)
	}

	var err error
	if in.BudgetMin, err = parseAmount(row["budgetMin"]); err != nil {
		verr.add("budgetMin", err.Error())
	}
	if in.BudgetMax, err = parseAmount(row["budgetMax"]); err != nil {
		verr.add("budgetMax", err.Error())
	}

	if err := Validate(in); err != nil {
		var fieldErrs *ValidationError
		if !errors.As(err, &fieldErrs) {
			return Input{}, err
		}
		verr.merge(fieldErrs)
	}
	if !verr.empty() {
		return Input{}, verr
	}
	return in, nil
}

func parseAmount(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, errors.New("must be a whole number")
	}
	return &n, nil
}

// SplitTags splits a comma-separated tag list, trimming entries and dropping
// empty ones.
func SplitTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// optional treats an empty string the same as an absent value.
func optional(p *string) *string {
	if p == nil {
		return nil
	}
	return optionalString(*p)
}

func optionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Buyer builds the model for a new buyer owned by ownerID. ID and
// timestamps are assigned by the store.
func (in Input) Buyer(ownerID string) *models.Buyer {
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	return &models.Buyer{
		OwnerID:      ownerID,
		FullName:     in.FullName,
		Email:        in.Email,
		Phone:        in.Phone,
		City:         in.City,
		PropertyType: in.PropertyType,
		BHK:          in.BHK,
		Purpose:      in.Purpose,
		BudgetMin:    in.BudgetMin,
		BudgetMax:    in.BudgetMax,
		Timeline:     in.Timeline,
		Source:       in.Source,
		Status:       in.Status,
		Notes:        in.Notes,
		Tags:         tags,
	}
}

// InputFrom returns the canonical input describing an existing buyer.
func InputFrom(b *models.Buyer) Input {
	return Input{
		FullName:     b.FullName,
		Email:        b.Email,
		Phone:        b.Phone,
		City:         b.City,
		PropertyType: b.PropertyType,
		BHK:          b.BHK,
		Purpose:      b.Purpose,
		BudgetMin:    b.BudgetMin,
		BudgetMax:    b.BudgetMax,
		Timeline:     b.Timeline,
		Source:       b.Source,
		Status:       b.Status,
		Notes:        b.Notes,
		Tags:         append([]string{}, b.Tags...),
	}
}
