// Template and node validation against the compiled schema.
package schema

import (
	"fmt"

	"github.com/barocss/editor-core/pkg/document"
)

// Result is the outcome of a validation: Valid with an empty Errors list,
// or invalid with one human-readable reason per violation.
type Result struct {
	Valid  bool
	Errors []string
}

// Err converts an invalid result into a *ValidationError, nil when valid.
func (r *Result) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Reasons: r.Errors}
}

func (r *Result) addf(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Validate checks a node template, recursively over its inline children,
// against the schema. parentType names the intended parent's type; pass ""
// for a standalone subtree root.
//
// Violations reported:
//   - unknown node type
//   - missing required attributes
//   - child type not admissible under the parent's content expression
//   - text on a type that does not allow text
//   - unknown mark types or marks missing required attrs
//
// Referenced children (bare ids) are checked by the store at build time,
// where node records are available; here only inline templates recurse.
func (s *Schema) Validate(t *document.Template, parentType string) *Result {
	res := &Result{Valid: true}
	s.validateTemplate(t, parentType, res)
	return res
}

func (s *Schema) validateTemplate(t *document.Template, parentType string, res *Result) {
	if t == nil {
		res.addf("template is nil")
		return
	}
	nt := s.NodeType(t.SType)
	if nt == nil {
		res.addf("unknown node type %q", t.SType)
		return
	}

	if parentType != "" {
		parent := s.NodeType(parentType)
		if parent == nil {
			res.addf("unknown parent type %q", parentType)
		} else if !parent.Allows(t.SType) {
			res.addf("type %q not allowed in %q (content: %s)",
				t.SType, parentType, parent.expressionSummary())
		}
	}

	s.checkAttrs(t.SType, nt.Spec.Attrs, t.Attributes, res)

	if t.Text != nil && !nt.AllowsText() {
		res.addf("type %q does not allow text content", t.SType)
	}
	if len(t.Content) > 0 && nt.Content == nil {
		res.addf("type %q does not allow children", t.SType)
	}

	for _, m := range t.Marks {
		s.checkMark(t.SType, m, res)
	}

	for _, child := range t.Content {
		if child.IsRef() {
			continue
		}
		s.validateTemplate(child.Template, t.SType, res)
	}
}

// ValidateNode checks a concrete node record the same way Validate checks a
// template, without recursion (children are ids).
func (s *Schema) ValidateNode(n *document.Node, parentType string) *Result {
	res := &Result{Valid: true}
	if n == nil {
		res.addf("node is nil")
		return res
	}
	nt := s.NodeType(n.SType)
	if nt == nil {
		res.addf("unknown node type %q", n.SType)
		return res
	}
	if parentType != "" {
		parent := s.NodeType(parentType)
		if parent == nil {
			res.addf("unknown parent type %q", parentType)
		} else if !parent.Allows(n.SType) {
			res.addf("type %q not allowed in %q (content: %s)",
				n.SType, parentType, parent.expressionSummary())
		}
	}
	s.checkAttrs(n.SType, nt.Spec.Attrs, n.Attributes, res)
	if n.Text != nil && !nt.AllowsText() {
		res.addf("type %q does not allow text content", n.SType)
	}
	if len(n.Content) > 0 && nt.Content == nil {
		res.addf("type %q does not allow children", n.SType)
	}
	for _, m := range n.Marks {
		s.checkMark(n.SType, m, res)
	}
	return res
}

// ValidateContent checks a full child-type list against a parent's content
// expression, including cardinality. Used at explicit document validation,
// not on every delete (intermediate states may under-fill a "+" parent).
func (s *Schema) ValidateContent(parentType string, childTypes []string) *Result {
	res := &Result{Valid: true}
	nt := s.NodeType(parentType)
	if nt == nil {
		res.addf("unknown node type %q", parentType)
		return res
	}
	if nt.Content == nil {
		if len(childTypes) > 0 {
			res.addf("type %q does not allow children", parentType)
		}
		return res
	}
	for _, ct := range childTypes {
		if !nt.Allows(ct) {
			res.addf("type %q not allowed in %q (content: %s)",
				ct, parentType, nt.expressionSummary())
		}
	}
	if len(childTypes) == 0 && !nt.Content.AllowsEmpty() {
		res.addf("type %q requires at least one child (content: %s)",
			parentType, nt.expressionSummary())
	}
	if nt.Content.ExactlyOne() && len(childTypes) > 1 {
		res.addf("type %q admits exactly one child, got %d (content: %s)",
			parentType, len(childTypes), nt.expressionSummary())
	}
	return res
}

// ValidateMarks checks a mark list for a node of the given type: known
// mark types and required mark attributes.
func (s *Schema) ValidateMarks(typeName string, marks []document.Mark) *Result {
	res := &Result{Valid: true}
	for _, m := range marks {
		s.checkMark(typeName, m, res)
	}
	return res
}

func (s *Schema) checkAttrs(typeName string, specs map[string]AttrSpec, attrs map[string]any, res *Result) {
	for name, spec := range specs {
		if !spec.Required {
			continue
		}
		if attrs == nil {
			res.addf("type %q: missing required attribute %q", typeName, name)
			continue
		}
		if _, ok := attrs[name]; !ok {
			res.addf("type %q: missing required attribute %q", typeName, name)
		}
	}
}

func (s *Schema) checkMark(typeName string, m document.Mark, res *Result) {
	mt := s.MarkType(m.SType)
	if mt == nil {
		res.addf("type %q: unknown mark type %q", typeName, m.SType)
		return
	}
	for name, spec := range mt.Spec.Attrs {
		if !spec.Required {
			continue
		}
		if m.Attrs == nil {
			res.addf("mark %q: missing required attribute %q", m.SType, name)
			continue
		}
		if _, ok := m.Attrs[name]; !ok {
			res.addf("mark %q: missing required attribute %q", m.SType, name)
		}
	}
}

// FillDefaults returns a copy of attrs with declared defaults filled in for
// absent, non-required attributes. The $alias key is never defaulted.
func (s *Schema) FillDefaults(typeName string, attrs map[string]any) map[string]any {
	nt := s.NodeType(typeName)
	if nt == nil || len(nt.Spec.Attrs) == 0 {
		return attrs
	}
	out := attrs
	copied := false
	for name, spec := range nt.Spec.Attrs {
		if spec.Required || spec.Default == nil {
			continue
		}
		if out != nil {
			if _, ok := out[name]; ok {
				continue
			}
		}
		if !copied {
			cp := make(map[string]any, len(attrs)+1)
			for k, v := range attrs {
				cp[k] = v
			}
			out = cp
			copied = true
		}
		out[name] = spec.Default
	}
	return out
}
