// Package permission resolves what a user may do with a document.
//
// Resolution is a pure function of the document, the user and the user's
// explicit grants on that document. Absence of access is LevelNone, never
// an error.
package permission

import (
	dErrors "lexflow/pkg/domain-errors"
)

// Level is a ranked capability. Higher values carry more authority, so
// comparisons are ordinal.
type Level int

const (
	LevelNone Level = iota
	LevelPublicAccess
	LevelViewOnly
	LevelUsability
	LevelOwner
	LevelLawyer
)

var levelNames = [...]string{
	LevelNone:         "none",
	LevelPublicAccess: "public_access",
	LevelViewOnly:     "view_only",
	LevelUsability:    "usability",
	LevelOwner:        "owner",
	LevelLawyer:       "lawyer",
}

func (l Level) String() string {
	if l < LevelNone || l > LevelLawyer {
		return "unknown"
	}
	return levelNames[l]
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	for i, name := range levelNames {
		if name == string(b) {
			*l = Level(i)
			return nil
		}
	}
	return dErrors.New(dErrors.CodeValidation, "unknown permission level: "+string(b))
}

// AtLeast reports whether l carries at least min's authority.
func (l Level) AtLeast(min Level) bool {
	return l >= min
}

// CanView is true for every level above none.
func (l Level) CanView() bool {
	return l > LevelNone
}

// CanUse is true for usability, owner and lawyer.
func (l Level) CanUse() bool {
	return l >= LevelUsability
}
