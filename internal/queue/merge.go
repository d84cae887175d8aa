package queue

import (
	"fmt"

	"deckgenius/internal/models"
)

// Policy decides where newly fetched rows go
type Policy string

const (
	// PolicySimple appends every new row to the input source.
	PolicySimple Policy = "simple"
	// PolicyFiltered appends new rows whose flag column is set to the queue and the
	// rest to the input source. Without a flag column every new row is queued.
	PolicyFiltered Policy = "filtered"
)

// ParsePolicy maps a config value to a Policy
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicySimple, PolicyFiltered:
		return Policy(s), nil
	case "":
		return PolicySimple, nil
	}
	return "", fmt.Errorf("unknown merge policy %q", s)
}

// Resolver reconciles full feed snapshots against the current sources using a
// stable per-row identity.
type Resolver struct {
	IdentityField string
	Policy        Policy
	FlagField     string
}

// MergeResult holds the merged sources and how many rows were added where
type MergeResult struct {
	State
	AddedToQueue int
	AddedToInput int
}

// Added returns the number of new rows in the merge
func (m MergeResult) Added() int {
	return m.AddedToQueue + m.AddedToInput
}

// Merge appends the rows of fetched whose identity is not yet known to any
// source. Fetched order is preserved and existing rows are never moved or
// removed. A row without identity rejects the whole batch.
func (r Resolver) Merge(fetched []models.Row, cur State) (MergeResult, error) {
	ids := make([]string, len(fetched))
	for i, row := range fetched {
		id, ok := row.Identity(r.IdentityField)
		if !ok {
			return MergeResult{}, fmt.Errorf("%w: row %d has no %q field", models.ErrMalformedFeedData, i, r.IdentityField)
		}
		ids[i] = id
	}

	known := r.identities(cur)
	res := MergeResult{State: cur.clone()}
	for i, row := range fetched {
		if _, dup := known[ids[i]]; dup {
			continue
		}
		known[ids[i]] = struct{}{}

		if r.routesToQueue(row) {
			res.Queue = append(res.Queue, row)
			res.AddedToQueue++
		} else {
			res.Input = append(res.Input, row)
			res.AddedToInput++
		}
	}
	return res, nil
}

func (r Resolver) identities(s State) map[string]struct{} {
	set := make(map[string]struct{}, len(s.Input)+len(s.Queue)+len(s.History))
	for _, rows := range [][]models.Row{s.Input, s.Queue, s.History} {
		for _, row := range rows {
			if id, ok := row.Identity(r.IdentityField); ok {
				set[id] = struct{}{}
			}
		}
	}
	return set
}

func (r Resolver) routesToQueue(row models.Row) bool {
	if r.Policy != PolicyFiltered {
		return false
	}
	if r.FlagField == "" {
		return true
	}
	return row.Flag(r.FlagField)
}
