// Package scope turns a granted permission scope and a caller identity into
// the row filter data-access code must apply.
package scope

import (
	"fmt"
	"strings"

	errors "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
)

type Scope string

const (
	Own  Scope = "own"
	Team Scope = "team"
	All  Scope = "all"
)

var ErrInvalidScope = errors.NewValidationError("scope must be one of own, team, all", errors.ErrCodeInvalidScope)

// Values lists the valid scopes from narrowest to widest.
func Values() []Scope {
	return []Scope{Own, Team, All}
}

func Parse(s string) (Scope, error) {
	sc := Scope(strings.ToLower(strings.TrimSpace(s)))
	if !sc.Valid() {
		return "", ErrInvalidScope.WithDetails(errors.ValidationErrors{Errors: []errors.ValidationError{
			{Field: "scope", Message: fmt.Sprintf("invalid scope %q", s), Code: string(errors.ErrCodeInvalidScope)},
		}})
	}
	return sc, nil
}

func (s Scope) Valid() bool {
	switch s {
	case Own, Team, All:
		return true
	}
	return false
}

// Rank orders scopes own < team < all. Invalid scopes rank 0.
func (s Scope) Rank() int {
	switch s {
	case Own:
		return 1
	case Team:
		return 2
	case All:
		return 3
	}
	return 0
}

// Covers reports whether s is at least as wide as required.
func (s Scope) Covers(required Scope) bool {
	return s.Valid() && required.Valid() && s.Rank() >= required.Rank()
}

func (s Scope) String() string {
	return string(s)
}

func Ptr(s Scope) *Scope {
	return &s
}
