// Package models defines the core domain models for the HomeQuest lead CRM.
//
// # Models
//
//   - Buyer: a prospective property buyer or renter, owned by exactly one User
//   - BuyerHistory: an append-only audit entry describing one change to a Buyer
//   - User: an account that owns buyers and acts on them
//
// # Design Principles
//
//  1. Categorical fields are typed string enums with a single canonical label each;
//     alternative spellings (e.g. "Walk-in", "0-3m", "3") are accepted on input and
//     normalized through the Enum descriptors.
//  2. History references buyers by ID only, so entries outlive the buyer they describe.
//  3. Optional fields are pointers so that "absent" and "zero" stay distinguishable.
package models
