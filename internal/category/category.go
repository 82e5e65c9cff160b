// Package category holds the fixed label set a call summary is classified into.
package category

import "strings"

const (
	Positive    = "Positive"
	Negative    = "Negative"
	FollowUp    = "Follow-up"
	WrongNumber = "Wrong Number"
)

// Default is used whenever classification fails.
const Default = FollowUp

// All lists the labels in prompt order.
var All = []string{Positive, Negative, FollowUp, WrongNumber}

// Canonical maps a free-form label onto the fixed set, ignoring case,
// surrounding punctuation and hyphen/space differences. ok is false for
// anything outside the set.
func Canonical(label string) (string, bool) {
	key := normalize(label)
	for _, c := range All {
		if normalize(c) == key {
			return c, true
		}
	}
	return "", false
}

// Known reports whether label is one of the four categories.
func Known(label string) bool {
	_, ok := Canonical(label)
	return ok
}

func normalize(label string) string {
	t := strings.ToLower(strings.TrimSpace(label))
	t = strings.Trim(t, ".:;!\"'*` -")
	t = strings.NewReplacer("-", "", " ", "", "_", "").Replace(t)
	return t
}
