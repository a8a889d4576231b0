package location

import (
	"fmt"
	log "log/slog"

	"github.com/google/cel-go/cel"

	"github.com/sharedcode/livepers"
)

// Rule classifies entities with a CEL boolean expression. The expression sees:
//
//	entity  map(string, dyn)  the serialized entity
//	id      string            the entity ID
//	class   string            the class ID
//	origin  string            the origin node marker of the ID, empty if unknown
//	node    string            this node
//
// Example: "origin == '' || origin == node || class == 'location'".
// An evaluation error classifies the entity as local.
type Rule struct {
	Expression string
	node       string
	forwarder  Forwarder
	program    cel.Program
}

// NewRule compiles expression for node.
func NewRule(expression string, node string, f Forwarder) (*Rule, error) {
	if expression == "" {
		return nil, fmt.Errorf("expression can't be empty string")
	}
	env, err := cel.NewEnv(
		cel.Variable("entity", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("id", cel.StringType),
		cel.Variable("class", cel.StringType),
		cel.Variable("origin", cel.StringType),
		cel.Variable("node", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating CEL environment: %v", err)
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("error compiling CEL expression: %v", issues.Err())
	}
	if ot := ast.OutputType(); !ot.IsExactType(cel.BoolType) && !ot.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("location rule must evaluate to bool, got %v", ot)
	}
	p, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("error creating Program: %v", err)
	}
	return &Rule{
		Expression: expression,
		node:       node,
		forwarder:  f,
		program:    p,
	}, nil
}

// Evaluate runs the rule against e.
func (r *Rule) Evaluate(e *livepers.Entity) (bool, error) {
	out, _, err := r.program.Eval(map[string]any{
		"entity": ruleInput(e),
		"id":     string(e.ID),
		"class":  e.ClassID,
		"origin": nodeOf(e),
		"node":   r.node,
	})
	if err != nil {
		return false, fmt.Errorf("error evaluating CEL expression: %v", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("error converting to bool, got: %v", out.Value())
	}
	return b, nil
}

// IsLocal evaluates the rule; on error the entity is treated as local.
func (r *Rule) IsLocal(e *livepers.Entity) bool {
	b, err := r.Evaluate(e)
	if err != nil {
		log.Warn("location rule failed, treating entity as local", "id", e.ID, "error", err)
		return true
	}
	return b
}

// MakeForwardingProxy wraps e in a Remote handle addressed to the entity's origin node.
func (r *Rule) MakeForwardingProxy(e *livepers.Entity) livepers.RemoteHandle {
	return NewRemote(e, nodeOf(e), r.forwarder)
}

// ruleInput keeps the CEL-friendly values of the serialized entity; links to other
// entities, nested ones included, are reduced to their IDs.
func ruleInput(e *livepers.Entity) map[string]any {
	d := e.Serialize()
	m := make(map[string]any, len(d))
	for k, v := range d {
		if rv, ok := ruleValue(v); ok {
			m[k] = rv
		}
	}
	return m
}

// ruleValue converts v for CEL. Values CEL cannot take are dropped (ok is false) and
// removed from the containers holding them.
func ruleValue(v any) (any, bool) {
	switch t := v.(type) {
	case string, bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return t, true
	case *livepers.Entity:
		if t == nil {
			return nil, false
		}
		return string(t.ID), true
	case interface{ ID() livepers.ID }:
		return string(t.ID()), true
	case []any:
		r := make([]any, 0, len(t))
		for _, item := range t {
			if iv, ok := ruleValue(item); ok {
				r = append(r, iv)
			}
		}
		return r, true
	case map[string]any:
		return ruleMap(t), true
	case livepers.Data:
		return ruleMap(t), true
	}
	return nil, false
}

func ruleMap(in map[string]any) map[string]any {
	r := make(map[string]any, len(in))
	for k, item := range in {
		if iv, ok := ruleValue(item); ok {
			r[k] = iv
		}
	}
	return r
}
