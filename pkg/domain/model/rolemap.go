package model

import (
	"sort"

	"github.com/m-mizutani/goerr/v2"

	"github.com/chapterkit/doorman/pkg/domain/types"
)

// RoleCategory groups role keys within a map for step-wise selection
type RoleCategory string

const (
	CategoryPronoun  RoleCategory = "pronoun"
	CategoryInterest RoleCategory = "interest"
)

// RoleEntry is one semantic key of a role map
type RoleEntry struct {
	Key      types.RoleKey
	RoleID   types.RoleID
	Label    string
	Category RoleCategory
}

// RoleMap is an immutable mapping from semantic keys to platform role
// identifiers. Two variants exist at runtime, one for members and one for
// affiliates, sharing the pronoun subset. A key maps to at most one role id.
type RoleMap struct {
	entries map[types.RoleKey]RoleEntry
	order   []types.RoleKey
}

// NewRoleMap builds a RoleMap from entries, rejecting duplicate keys and
// keys that share a role id within the same category listing.
func NewRoleMap(entries []RoleEntry) (*RoleMap, error) {
	m := &RoleMap{
		entries: make(map[types.RoleKey]RoleEntry, len(entries)),
		order:   make([]types.RoleKey, 0, len(entries)),
	}

	for _, e := range entries {
		if err := e.Key.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid role key", goerr.T(types.ErrTagValidation))
		}
		if err := e.RoleID.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid role ID", goerr.V("key", e.Key), goerr.T(types.ErrTagValidation))
		}
		if _, exists := m.entries[e.Key]; exists {
			return nil, goerr.New("duplicate role key", goerr.V("key", e.Key), goerr.T(types.ErrTagValidation))
		}
		m.entries[e.Key] = e
		m.order = append(m.order, e.Key)
	}

	return m, nil
}

// Resolve returns the role id mapped to key
func (m *RoleMap) Resolve(key types.RoleKey) (types.RoleID, bool) {
	e, ok := m.entries[key]
	return e.RoleID, ok
}

// Entry returns the full entry for key
func (m *RoleMap) Entry(key types.RoleKey) (RoleEntry, bool) {
	e, ok := m.entries[key]
	return e, ok
}

// Keys returns all keys in declaration order, optionally filtered by category
func (m *RoleMap) Keys(categories ...RoleCategory) []types.RoleKey {
	if len(categories) == 0 {
		keys := make([]types.RoleKey, len(m.order))
		copy(keys, m.order)
		return keys
	}

	var keys []types.RoleKey
	for _, k := range m.order {
		for _, c := range categories {
			if m.entries[k].Category == c {
				keys = append(keys, k)
				break
			}
		}
	}
	return keys
}

// RoleIDs returns the role ids for the given keys; unknown keys are dropped
func (m *RoleMap) RoleIDs(keys []types.RoleKey) []types.RoleID {
	var ids []types.RoleID
	for _, k := range keys {
		if e, ok := m.entries[k]; ok {
			ids = append(ids, e.RoleID)
		}
	}
	return ids
}

// Len returns the number of entries
func (m *RoleMap) Len() int {
	return len(m.order)
}

// RoleDiff is the outcome of comparing a selection against a key universe
type RoleDiff struct {
	ToAdd    []types.RoleID
	ToRemove []types.RoleID
}

// Diff converts a user's selection into a role diff over the given key
// universe: roles for selected keys are added, roles for the remaining keys
// of the universe are removed. Keys outside the map are ignored on both
// sides, so roles not governed by the map are never touched.
func (m *RoleMap) Diff(selected []types.RoleKey, universe []types.RoleKey) RoleDiff {
	chosen := make(map[types.RoleKey]bool, len(selected))
	for _, k := range selected {
		chosen[k] = true
	}

	var diff RoleDiff
	for _, k := range universe {
		e, ok := m.entries[k]
		if !ok {
			continue
		}
		if chosen[k] {
			diff.ToAdd = append(diff.ToAdd, e.RoleID)
		} else {
			diff.ToRemove = append(diff.ToRemove, e.RoleID)
		}
	}

	sort.Slice(diff.ToAdd, func(i, j int) bool { return diff.ToAdd[i] < diff.ToAdd[j] })
	sort.Slice(diff.ToRemove, func(i, j int) bool { return diff.ToRemove[i] < diff.ToRemove[j] })
	return diff
}
