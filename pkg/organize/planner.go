// Package organize maps cluster assignments onto physical shelf/folder
// locations and reports which documents should move.
//
// A Policy bounds the location space. Cluster c lands on folder
// 'A'+(c mod MaxFolders) of shelf (c/MaxFolders mod MaxShelves)+1, so the first
// MaxFolders clusters fill shelf 1 before shelf 2 is used. Clusters beyond
// MaxShelves*MaxFolders wrap around and share locations.
//
// Example:
//
//	policy := organize.Policy{MaxShelves: 5, MaxFolders: 5}
//	suggestions, err := organize.Plan(docs, assignments, policy)
//	if err != nil {
//		return err
//	}
//	for _, s := range organize.FilterChanged(suggestions) {
//		fmt.Printf("%s: %v -> %s\n", s.Name, s.Current, s.Suggested)
//	}
package organize

import (
	"errors"
	"fmt"
)

// Default location bounds.
const (
	DefaultMaxShelves = 5
	DefaultMaxFolders = 5

	// MaxFolderLetters is the number of single-letter folder codes.
	MaxFolderLetters = 26
)

// ErrInvalidPolicy is returned for non-positive or out-of-range bounds.
var ErrInvalidPolicy = errors.New("organize: invalid location policy")

// Location is a shelf number (from 1) and a single-letter folder code.
type Location struct {
	Shelf  int    `json:"shelf" yaml:"shelf"`
	Folder string `json:"folder" yaml:"folder"`
}

// String renders the location as "3B".
func (l Location) String() string {
	return fmt.Sprintf("%d%s", l.Shelf, l.Folder)
}

// Policy bounds the location space.
type Policy struct {
	MaxShelves int
	MaxFolders int
}

// DefaultPolicy returns a 5x5 policy.
func DefaultPolicy() Policy {
	return Policy{MaxShelves: DefaultMaxShelves, MaxFolders: DefaultMaxFolders}
}

// Capacity is the number of distinct locations the policy addresses.
func (p Policy) Capacity() int {
	return p.MaxShelves * p.MaxFolders
}

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	if p.MaxShelves < 1 {
		return fmt.Errorf("%w: max shelves must be positive, got %d", ErrInvalidPolicy, p.MaxShelves)
	}
	if p.MaxFolders < 1 || p.MaxFolders > MaxFolderLetters {
		return fmt.Errorf("%w: max folders must be in [1, %d], got %d",
			ErrInvalidPolicy, MaxFolderLetters, p.MaxFolders)
	}
	return nil
}

// LocationFor maps a non-negative cluster index to its location.
// The policy must be valid.
func (p Policy) LocationFor(cluster int) Location {
	if cluster < 0 {
		cluster = -cluster
	}
	return Location{
		Shelf:  (cluster/p.MaxFolders)%p.MaxShelves + 1,
		Folder: string(rune('A' + cluster%p.MaxFolders)),
	}
}

// Document is the planner's view of a document.
type Document struct {
	ID      string
	Name    string
	Current *Location
}

// Suggestion is the proposed location for one document.
type Suggestion struct {
	DocumentID string    `json:"documentId"`
	Name       string    `json:"name"`
	Current    *Location `json:"current,omitempty"`
	Suggested  Location  `json:"suggested"`
}

// Changed reports whether applying s would move the document.
func (s Suggestion) Changed() bool {
	return s.Current == nil || *s.Current != s.Suggested
}

// Plan computes a suggestion for every document that has an assignment, in
// the order of docs. Documents without an assignment (for example ones with
// no embedding) are skipped.
func Plan(docs []Document, assignments map[string]int, policy Policy) ([]Suggestion, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	suggestions := make([]Suggestion, 0, len(docs))
	for _, doc := range docs {
		cluster, ok := assignments[doc.ID]
		if !ok {
			continue
		}
		s := Suggestion{
			DocumentID: doc.ID,
			Name:       doc.Name,
			Suggested:  policy.LocationFor(cluster),
		}
		if doc.Current != nil {
			current := *doc.Current
			s.Current = &current
		}
		suggestions = append(suggestions, s)
	}
	return suggestions, nil
}

// FilterChanged returns the suggestions that would move a document.
func FilterChanged(suggestions []Suggestion) []Suggestion {
	var changed []Suggestion
	for _, s := range suggestions {
		if s.Changed() {
			changed = append(changed, s)
		}
	}
	return changed
}
