// Package condition resolves templated win conditions against an event's
// result tree and evaluates them to a boolean verdict.
//
// A win condition is a boolean expression containing zero or more
// {dotted.path} placeholders, e.g.
//
//	{event.finalScore.home} > {event.finalScore.away}
//
// The first path segment names the root object; each following segment
// projects one field through the tree via the explicit field registries the
// navigable entities expose (see domain.Event.Field). After every placeholder
// is substituted with the string form of its resolved value, the remaining
// text is evaluated by the embedded expression grammar in expr.go.
package condition

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mpajak/betslip/internal/domain"
)

// Node is a navigable property tree. domain types satisfy it structurally by
// registering typed projection functions keyed by lowercased field name.
type Node interface {
	Field(name string) (any, bool)
}

var placeholderRe = regexp.MustCompile(`\{([^}]*)\}`)

// Evaluate substitutes every placeholder in template against root and
// evaluates the result as a boolean expression. It returns
// domain.ErrMalformedCondition (wrapped) when a path cannot be resolved or
// the substituted text is not valid boolean syntax. Repeated identical
// placeholders are each re-resolved and yield the same value.
func Evaluate(template string, root Node) (bool, error) {
	substituted, err := Substitute(template, root)
	if err != nil {
		return false, err
	}
	ok, err := evalExpr(substituted)
	if err != nil {
		return false, fmt.Errorf("%w: evaluate %q: %v", domain.ErrMalformedCondition, substituted, err)
	}
	return ok, nil
}

// Substitute replaces every {dotted.path} span in template with the string
// form of the value the path resolves to on root. Placeholders resolve left
// to right and independently.
func Substitute(template string, root Node) (string, error) {
	var resolveErr error
	out := placeholderRe.ReplaceAllStringFunc(template, func(span string) string {
		if resolveErr != nil {
			return span
		}
		path := span[1 : len(span)-1]
		v, err := resolvePath(root, path)
		if err != nil {
			resolveErr = err
			return span
		}
		return v
	})
	if resolveErr != nil {
		return "", resolveErr
	}
	return out, nil
}

// resolvePath walks a dotted path from root and formats the terminal value.
// The first segment only names the root and is not projected.
func resolvePath(root Node, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty placeholder path", domain.ErrMalformedCondition)
	}
	segments := strings.Split(path, ".")
	if len(segments) < 2 {
		return "", fmt.Errorf("%w: path %q has no field to project", domain.ErrMalformedCondition, path)
	}

	var cur any = root
	for _, seg := range segments[1:] {
		node, ok := cur.(Node)
		if !ok {
			return "", fmt.Errorf("%w: path %q descends past a terminal value at %q", domain.ErrMalformedCondition, path, seg)
		}
		v, ok := node.Field(seg)
		if !ok {
			return "", fmt.Errorf("%w: path %q has no field %q", domain.ErrMalformedCondition, path, seg)
		}
		cur = v
	}

	return formatValue(cur, path)
}

// formatValue renders a resolved terminal as expression text. Values that are
// still navigable nodes mean the path stopped short of a terminal.
func formatValue(v any, path string) (string, error) {
	switch t := v.(type) {
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	case string:
		return t, nil
	case decimal.Decimal:
		return t.String(), nil
	case Node:
		return "", fmt.Errorf("%w: path %q stops at a nested object", domain.ErrMalformedCondition, path)
	default:
		return "", fmt.Errorf("%w: path %q resolves to unsupported type %T", domain.ErrMalformedCondition, path, v)
	}
}
