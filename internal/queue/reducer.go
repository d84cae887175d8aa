package queue

import (
	"reflect"

	"deckgenius/internal/models"
)

// State is the input/queue/history triple. Slices are replaced, never mutated
// in place, so a State handed out stays valid.
type State struct {
	Input   []models.Row
	Queue   []models.Row
	History []models.Row
}

func (s State) clone() State {
	return State{
		Input:   append([]models.Row(nil), s.Input...),
		Queue:   append([]models.Row(nil), s.Queue...),
		History: append([]models.Row(nil), s.History...),
	}
}

// Action is a queue mutation
type Action interface {
	actionName() string
}

// Enqueue appends Item to the queue and drops the same identity from input.
type Enqueue struct{ Item models.Row }

// RemoveAt removes the queue row at Index. Out-of-range is a no-op.
type RemoveAt struct{ Index int }

// Clear empties every source.
type Clear struct{}

// ConsumeHead moves Item, matched by identity, from the queue to history.
type ConsumeHead struct{ Item models.Row }

// Merge reconciles a fetched feed snapshot.
type Merge struct{ Rows []models.Row }

// ReplaceInput replaces the input source wholesale.
type ReplaceInput struct{ Rows []models.Row }

// RestoreHistory prepends previously presented rows to history.
type RestoreHistory struct{ Rows []models.Row }

func (Enqueue) actionName() string        { return "enqueue" }
func (RemoveAt) actionName() string       { return "remove_at" }
func (Clear) actionName() string          { return "clear" }
func (ConsumeHead) actionName() string    { return "consume_head" }
func (Merge) actionName() string          { return "merge" }
func (ReplaceInput) actionName() string   { return "replace_input" }
func (RestoreHistory) actionName() string { return "restore_history" }

// Reduce applies an action and returns the next state plus whether anything
// changed. Only Merge can fail; on failure the state is returned untouched.
func Reduce(s State, a Action, r Resolver) (State, bool, error) {
	switch act := a.(type) {
	case Enqueue:
		if act.Item == nil {
			return s, false, nil
		}
		next := State{
			Input:   s.Input,
			Queue:   append(append([]models.Row(nil), s.Queue...), act.Item),
			History: s.History,
		}
		if id, ok := act.Item.Identity(r.IdentityField); ok {
			next.Input = without(s.Input, func(row models.Row) bool {
				rid, ok := row.Identity(r.IdentityField)
				return ok && rid == id
			})
		}
		return next, true, nil

	case RemoveAt:
		if act.Index < 0 || act.Index >= len(s.Queue) {
			return s, false, nil
		}
		next := s
		next.Queue = make([]models.Row, 0, len(s.Queue)-1)
		next.Queue = append(next.Queue, s.Queue[:act.Index]...)
		next.Queue = append(next.Queue, s.Queue[act.Index+1:]...)
		return next, true, nil

	case Clear:
		if len(s.Input) == 0 && len(s.Queue) == 0 && len(s.History) == 0 {
			return s, false, nil
		}
		return State{}, true, nil

	case ConsumeHead:
		idx := r.indexOf(s.Queue, act.Item)
		if idx < 0 {
			return s, false, nil
		}
		item := s.Queue[idx]
		next := s
		next.Queue = make([]models.Row, 0, len(s.Queue)-1)
		next.Queue = append(next.Queue, s.Queue[:idx]...)
		next.Queue = append(next.Queue, s.Queue[idx+1:]...)
		next.History = append(append([]models.Row(nil), s.History...), item)
		return next, true, nil

	case Merge:
		res, err := r.Merge(act.Rows, s)
		if err != nil {
			return s, false, err
		}
		if res.Added() == 0 {
			return s, false, nil
		}
		return res.State, true, nil

	case ReplaceInput:
		next := s
		next.Input = append([]models.Row(nil), act.Rows...)
		return next, true, nil

	case RestoreHistory:
		if len(act.Rows) == 0 {
			return s, false, nil
		}
		next := s
		next.History = append(append([]models.Row(nil), act.Rows...), s.History...)
		return next, true, nil
	}
	return s, false, nil
}

// indexOf finds item in rows by identity, falling back to structural equality
// for rows that carry no identity.
func (r Resolver) indexOf(rows []models.Row, item models.Row) int {
	if item == nil {
		return -1
	}
	if id, ok := item.Identity(r.IdentityField); ok {
		for i, row := range rows {
			if rid, ok := row.Identity(r.IdentityField); ok && rid == id {
				return i
			}
		}
		return -1
	}
	for i, row := range rows {
		if reflect.DeepEqual(row, item) {
			return i
		}
	}
	return -1
}

func without(rows []models.Row, drop func(models.Row) bool) []models.Row {
	out := make([]models.Row, 0, len(rows))
	for _, row := range rows {
		if !drop(row) {
			out = append(out, row)
		}
	}
	return out
}
