package models

import "strings"

type (
	City         string
	PropertyType string
	BHK          string
	Purpose      string
	Timeline     string
	Source       string
	Status       string
)

const (
	CityChandigarh City = "Chandigarh"
	CityMohali     City = "Mohali"
	CityZirakpur   City = "Zirakpur"
	CityPanchkula  City = "Panchkula"
	CityOther      City = "Other"
)

const (
	PropertyApartment PropertyType = "Apartment"
	PropertyVilla     PropertyType = "Villa"
	PropertyPlot      PropertyType = "Plot"
	PropertyOffice    PropertyType = "Office"
	PropertyRetail    PropertyType = "Retail"
)

const (
	BHKOne   BHK = "One"
	BHKTwo   BHK = "Two"
	BHKThree BHK = "Three"
	BHKFour  BHK = "Four"
)

const (
	PurposeBuy  Purpose = "Buy"
	PurposeRent Purpose = "Rent"
)

const (
	TimelineZeroToThree Timeline = "ZeroToThree"
	TimelineThreeToSix  Timeline = "ThreeToSix"
	TimelineMoreThanSix Timeline = "MoreThanSix"
	TimelineExploring   Timeline = "Exploring"
)

const (
	SourceWebsite  Source = "Website"
	SourceReferral Source = "Referral"
	SourceWalkIn   Source = "WalkIn"
	SourceCall     Source = "Call"
	SourceOther    Source = "Other"
)

// Status is the lead workflow state. Any status may move to any other;
// Converted and Dropped are terminal by convention only.
const (
	StatusNew         Status = "New"
	StatusQualified   Status = "Qualified"
	StatusContacted   Status = "Contacted"
	StatusVisited     Status = "Visited"
	StatusNegotiation Status = "Negotiation"
	StatusConverted   Status = "Converted"
	StatusDropped     Status = "Dropped"
)

// Enum describes the canonical labels of a categorical field and the
// alternative spellings accepted on input.
type Enum[T ~string] struct {
	Values  []T
	aliases map[string]T
}

func newEnum[T ~string](values []T, aliases map[string]T) Enum[T] {
	lookup := make(map[string]T, len(values)+len(aliases))
	for _, v := range values {
		lookup[strings.ToLower(string(v))] = v
	}
	for alias, v := range aliases {
		lookup[strings.ToLower(alias)] = v
	}
	return Enum[T]{Values: values, aliases: lookup}
}

// Parse maps s (case-insensitive, surrounding spaces ignored) to its
// canonical label.
func (e Enum[T]) Parse(s string) (T, bool) {
	v, ok := e.aliases[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}

// Canonical returns the canonical label for s, or s unchanged when it is
// not a known spelling, so that validation can report it.
func (e Enum[T]) Canonical(s string) T {
	if v, ok := e.Parse(s); ok {
		return v
	}
	return T(s)
}

// Valid reports whether v is one of the canonical labels.
func (e Enum[T]) Valid(v T) bool {
	for _, c := range e.Values {
		if c == v {
			return true
		}
	}
	return false
}

// Strings returns the canonical labels in declaration order.
func (e Enum[T]) Strings() []string {
	out := make([]string, len(e.Values))
	for i, v := range e.Values {
		out[i] = string(v)
	}
	return out
}

var (
	Cities = newEnum([]City{CityChandigarh, CityMohali, CityZirakpur, CityPanchkula, CityOther}, nil)

	PropertyTypes = newEnum([]PropertyType{
		PropertyApartment, PropertyVilla, PropertyPlot, PropertyOffice, PropertyRetail,
	}, nil)

	BHKs = newEnum([]BHK{BHKOne, BHKTwo, BHKThree, BHKFour}, map[string]BHK{
		"1": BHKOne, "2": BHKTwo, "3": BHKThree, "4": BHKFour,
	})

	Purposes = newEnum([]Purpose{PurposeBuy, PurposeRent}, nil)

	Timelines = newEnum([]Timeline{
		TimelineZeroToThree, TimelineThreeToSix, TimelineMoreThanSix, TimelineExploring,
	}, map[string]Timeline{
		"0-3m": TimelineZeroToThree,
		"3-6m": TimelineThreeToSix,
		"6m":   TimelineMoreThanSix,
		">6m":  TimelineMoreThanSix,
	})

	Sources = newEnum([]Source{SourceWebsite, SourceReferral, SourceWalkIn, SourceCall, SourceOther},
		map[string]Source{"Walk-in": SourceWalkIn, "Walk in": SourceWalkIn})

	Statuses = newEnum([]Status{
		StatusNew, StatusQualified, StatusContacted, StatusVisited,
		StatusNegotiation, StatusConverted, StatusDropped,
	}, nil)
)

// Closed reports whether the status is conventionally terminal.
func (s Status) Closed() bool {
	return s == StatusConverted || s == StatusDropped
}
