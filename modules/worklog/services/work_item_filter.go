package services

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/jacksonlee411/worklog/modules/worklog/domain/types"
	"github.com/jacksonlee411/worklog/pkg/httperr"
)

const (
	errFilterInvalid = "WORK_ITEM_FILTER_INVALID"

	maxCachedFilters = 256
)

var newWorkItemCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("item", cel.MapType(cel.StringType, cel.DynType)))
}

// WorkItemFilter evaluates CEL predicates over work items, for example
// `item.type == "done" && "release" in item.tags`.
type WorkItemFilter struct {
	mu       sync.Mutex
	programs map[string]cel.Program
}

func NewWorkItemFilter() *WorkItemFilter {
	return &WorkItemFilter{programs: make(map[string]cel.Program)}
}

// Compile returns a predicate for expr. Syntax and type errors, and
// expressions that do not yield a bool, are bad requests. An item the
// program cannot evaluate (say, comparing a null duration) does not match.
func (f *WorkItemFilter) Compile(expr string) (func(types.VisibleWorkItem) bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return func(types.VisibleWorkItem) bool { return true }, nil
	}
	prg, err := f.program(expr)
	if err != nil {
		return nil, httperr.NewBadRequest(errFilterInvalid)
	}
	return func(it types.VisibleWorkItem) bool {
		out, _, err := prg.Eval(map[string]any{"item": workItemActivation(it)})
		if err != nil {
			return false
		}
		v, ok := out.Value().(bool)
		return ok && v
	}, nil
}

func (f *WorkItemFilter) program(expr string) (cel.Program, error) {
	f.mu.Lock()
	prg, ok := f.programs[expr]
	f.mu.Unlock()
	if ok {
		return prg, nil
	}

	env, err := newWorkItemCELEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.New("filter must evaluate to bool")
	}
	prg, err = env.Program(ast)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	if len(f.programs) >= maxCachedFilters {
		clear(f.programs)
	}
	f.programs[expr] = prg
	f.mu.Unlock()
	return prg, nil
}

func workItemActivation(it types.VisibleWorkItem) map[string]any {
	m := map[string]any{
		"id":              it.ID,
		"creatorId":       it.CreatorID,
		"orgId":           it.OrgID,
		"workDate":        it.WorkDate,
		"title":           it.Title,
		"type":            it.Type,
		"tags":            append([]string{}, it.Tags...),
		"durationMinutes": nil,
		"detail":          nil,
		"creatorName":     nil,
	}
	if it.DurationMinutes != nil {
		m["durationMinutes"] = int64(*it.DurationMinutes)
	}
	if it.Detail != nil {
		m["detail"] = *it.Detail
	}
	if it.CreatorName != nil {
		m["creatorName"] = *it.CreatorName
	}
	return m
}
