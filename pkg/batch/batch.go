// Package batch parses YAML/JSON batch files: named lists of expressions
// with optional expected results.
package batch

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/astatarinov/calc/pkg/types"
)

// MaxExpressions is the maximum number of expressions per batch.
const MaxExpressions = 1000

// MaxSourceSize is the maximum batch source size in bytes (128 KB).
const MaxSourceSize = 128 * 1024

// ParseError represents an error encountered while parsing a batch file.
type ParseError struct {
	Message  string
	Location string // e.g., "expression 'area'"
}

func (e *ParseError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("parse error at %s: %s", e.Location, e.Message)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

// Batch is a parsed batch definition.
type Batch struct {
	Description string
	// StopOnFatal overrides the runner default when set.
	StopOnFatal *bool
	Entries     []*Entry
}

// Entry is one expression of a batch.
type Entry struct {
	Index  int
	Name   string
	Expr   string
	Expect *types.Number
}

// Parse parses a YAML or JSON batch definition.
func Parse(source []byte) (*Batch, error) {
	if len(source) > MaxSourceSize {
		return nil, &ParseError{Message: fmt.Sprintf("batch source size %d exceeds maximum %d bytes", len(source), MaxSourceSize)}
	}

	var raw yaml.Node
	if err := yaml.Unmarshal(source, &raw); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	// The root node is a document node containing the actual content
	if raw.Kind != yaml.DocumentNode || len(raw.Content) == 0 {
		return nil, &ParseError{Message: "empty batch definition"}
	}

	rootNode := raw.Content[0]
	if rootNode.Kind != yaml.MappingNode {
		return nil, &ParseError{Message: "batch definition must be a mapping"}
	}

	b := &Batch{}
	var exprNode *yaml.Node
	for i := 0; i+1 < len(rootNode.Content); i += 2 {
		key := rootNode.Content[i].Value
		val := rootNode.Content[i+1]

		switch key {
		case "description":
			if val.Kind != yaml.ScalarNode {
				return nil, &ParseError{Message: "description must be a string"}
			}
			b.Description = val.Value
		case "stopOnFatal":
			v, err := boolFromNode(val)
			if err != nil {
				return nil, &ParseError{Message: err.Error(), Location: "stopOnFatal"}
			}
			b.StopOnFatal = &v
		case "expressions":
			exprNode = val
		default:
			return nil, &ParseError{Message: fmt.Sprintf("unknown field '%s'", key)}
		}
	}

	if exprNode == nil {
		return nil, &ParseError{Message: "missing 'expressions'"}
	}
	entries, err := parseEntries(exprNode)
	if err != nil {
		return nil, err
	}
	b.Entries = entries
	return b, nil
}

func parseEntries(node *yaml.Node) ([]*Entry, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, &ParseError{Message: "expressions must be a list"}
	}
	if len(node.Content) == 0 {
		return nil, &ParseError{Message: "expressions must not be empty"}
	}
	if len(node.Content) > MaxExpressions {
		return nil, &ParseError{Message: fmt.Sprintf("batch has %d expressions, maximum is %d", len(node.Content), MaxExpressions)}
	}

	entries := make([]*Entry, 0, len(node.Content))
	seen := make(map[string]bool)
	for i, item := range node.Content {
		e, err := parseEntry(i, item)
		if err != nil {
			return nil, err
		}
		if seen[e.Name] {
			return nil, &ParseError{Message: "duplicate expression name", Location: fmt.Sprintf("expression '%s'", e.Name)}
		}
		seen[e.Name] = true
		entries = append(entries, e)
	}
	return entries, nil
}

func parseEntry(index int, node *yaml.Node) (*Entry, error) {
	e := &Entry{Index: index, Name: fmt.Sprintf("expr%d", index)}
	loc := fmt.Sprintf("expression %d", index)

	switch node.Kind {
	case yaml.ScalarNode:
		// Shorthand: the item is the expression itself.
		e.Expr = node.Value
		return e, nil

	case yaml.MappingNode:
		hasExpr := false
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			val := node.Content[i+1]

			switch key {
			case "name":
				if val.Kind != yaml.ScalarNode || val.Value == "" {
					return nil, &ParseError{Message: "name must be a non-empty string", Location: loc}
				}
				e.Name = val.Value
			case "expr":
				if val.Kind != yaml.ScalarNode {
					return nil, &ParseError{Message: "expr must be a string", Location: loc}
				}
				e.Expr = val.Value
				hasExpr = true
			case "expect":
				n, err := numberFromNode(val)
				if err != nil {
					return nil, &ParseError{Message: err.Error(), Location: loc}
				}
				e.Expect = &n
			default:
				return nil, &ParseError{Message: fmt.Sprintf("unknown field '%s'", key), Location: loc}
			}
		}
		if !hasExpr {
			return nil, &ParseError{Message: "missing 'expr'", Location: loc}
		}
		return e, nil

	default:
		return nil, &ParseError{Message: "expression must be a string or a mapping", Location: loc}
	}
}

// numberFromNode converts a YAML int or float scalar into a Number.
func numberFromNode(node *yaml.Node) (types.Number, error) {
	if node.Kind != yaml.ScalarNode {
		return types.Number{}, fmt.Errorf("expect must be a number")
	}
	switch node.ShortTag() {
	case "!!int":
		i, err := strconv.ParseInt(node.Value, 0, 64)
		if err != nil {
			return types.Number{}, fmt.Errorf("expect %q is not a valid int", node.Value)
		}
		return types.NewInt(i), nil
	case "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return types.Number{}, fmt.Errorf("expect %q is not a valid number", node.Value)
		}
		return types.NewDouble(f), nil
	}
	return types.Number{}, fmt.Errorf("expect must be a number, got %q", node.Value)
}

func boolFromNode(node *yaml.Node) (bool, error) {
	var v bool
	if node.Kind != yaml.ScalarNode || node.ShortTag() != "!!bool" {
		return false, fmt.Errorf("expected a boolean, got %q", node.Value)
	}
	if err := node.Decode(&v); err != nil {
		return false, err
	}
	return v, nil
}
