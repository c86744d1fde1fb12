package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/semgeo/semgeo/pkg/store"
)

// UpdateResult summarizes the effect of an update request.
type UpdateResult struct {
	Operations int           `json:"operations"`
	Inserted   int           `json:"inserted"`
	Deleted    int           `json:"deleted"`
	Duration   time.Duration `json:"duration"`
}

// ExecuteUpdateString parses and applies a SPARQL update request. The whole
// request is parsed before any operation runs, so a syntax error leaves the
// store untouched.
func (e *Executor) ExecuteUpdateString(ctx context.Context, updateStr string) (*UpdateResult, error) {
	update, err := NewParser(e.prefixes).ParseUpdate(updateStr)
	if err != nil {
		return nil, err
	}
	return e.ExecuteUpdate(ctx, update)
}

// ExecuteUpdate applies the operations of a parsed update in order.
func (e *Executor) ExecuteUpdate(ctx context.Context, update *Update) (*UpdateResult, error) {
	start := time.Now()
	result := &UpdateResult{}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	for i, operation := range update.Operations {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if e.enablePlanning {
			e.RefreshStats()
		}

		inserted, deleted, err := e.applyOperation(ctx, operation)
		if err != nil {
			return result, fmt.Errorf("update operation %d: %w", i+1, err)
		}
		result.Operations++
		result.Inserted += inserted
		result.Deleted += deleted
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (e *Executor) applyOperation(ctx context.Context, operation UpdateOperation) (inserted, deleted int, err error) {
	switch op := operation.(type) {
	case *InsertData:
		triples := e.instantiateTemplate(op.Triples, []Binding{{}})
		return e.store.BulkAdd(triples), 0, nil

	case *DeleteData:
		triples := e.instantiateTemplate(op.Triples, []Binding{{}})
		return 0, e.store.BulkDelete(triples), nil

	case *DeleteWhere:
		where := &GroupPattern{Elements: []PatternElement{&BasicPattern{Triples: op.Patterns}}}
		return e.modify(ctx, op.Patterns, nil, where)

	case *Modify:
		return e.modify(ctx, op.Delete, op.Insert, op.Where)

	case *Clear:
		deleted = e.store.Count()
		e.store.Clear()
		return 0, deleted, nil
	}
	return 0, 0, fmt.Errorf("unsupported update operation %T", operation)
}

// modify evaluates the WHERE clause once, then removes every instantiated
// delete triple before adding every instantiated insert triple. Solutions
// are sorted first so blank nodes minted by the insert template are
// numbered the same way on every run.
func (e *Executor) modify(ctx context.Context, deleteTemplate, insertTemplate []TriplePattern, where *GroupPattern) (inserted, deleted int, err error) {
	solutions, err := e.evalGroup(ctx, where, []Binding{{}})
	if err != nil {
		return 0, 0, err
	}

	keys := make([]string, len(solutions))
	for i, solution := range solutions {
		keys[i] = canonicalKey(solution)
	}
	sort.Sort(bySolutionKey{solutions: solutions, keys: keys})

	var toDelete, toInsert []store.Triple
	if len(deleteTemplate) > 0 {
		toDelete = e.instantiateTemplate(deleteTemplate, solutions)
	}
	if len(insertTemplate) > 0 {
		toInsert = e.instantiateTemplate(insertTemplate, solutions)
	}

	deleted = e.store.BulkDelete(toDelete)
	inserted = e.store.BulkAdd(toInsert)
	return inserted, deleted, nil
}

type bySolutionKey struct {
	solutions []Binding
	keys      []string
}

func (s bySolutionKey) Len() int           { return len(s.solutions) }
func (s bySolutionKey) Less(i, j int) bool { return s.keys[i] < s.keys[j] }
func (s bySolutionKey) Swap(i, j int) {
	s.solutions[i], s.solutions[j] = s.solutions[j], s.solutions[i]
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
}
