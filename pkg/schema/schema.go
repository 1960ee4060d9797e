// Package schema implements the declarative schema layer of the document
// model: node and mark type registries, content expressions, and the
// metadata predicates traversal uses (editable, selectable, draggable,
// droppable, indentable).
//
// A Schema is an immutable bundle built once from a Spec (programmatic) or
// a YAML definition (Load/Parse). Node types declare a group, a content
// expression, attribute specs, and behavior flags; mark types declare a
// group and attribute specs. The store consults the schema on every
// structural, attribute, and mark validation.
//
// Example Usage:
//
//	sch, err := schema.New(schema.Spec{
//		TopNode: "doc",
//		Nodes: map[string]schema.NodeTypeSpec{
//			"doc":         {Group: "document", Content: "block+"},
//			"paragraph":   {Group: "block", Content: "inline*", Editable: true},
//			"inline-text": {Group: "inline", Text: true},
//		},
//		Marks: map[string]schema.MarkTypeSpec{
//			"bold":   {Group: "formatting"},
//			"italic": {Group: "formatting"},
//		},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	pt := sch.NodeType("paragraph")
//	fmt.Println(pt.Allows("inline-text")) // true
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// AttrSpec describes one attribute of a node or mark type.
type AttrSpec struct {
	// Required attributes must be present on every instance.
	Required bool `yaml:"required" json:"required,omitempty"`
	// Default is filled in when the attribute is absent and not required.
	Default any `yaml:"default" json:"default,omitempty"`
}

// NodeTypeSpec is the declarative definition of a node type.
type NodeTypeSpec struct {
	// Group names the kind this type belongs to ("block", "inline",
	// "document", ...). Content expressions may reference groups.
	Group string `yaml:"group" json:"group"`
	// Content is the content expression: "T", "T+", "T*", with
	// alternation by "|". Empty means the type holds no children.
	Content string `yaml:"content" json:"content,omitempty"`
	// Attrs declares the permitted attributes.
	Attrs map[string]AttrSpec `yaml:"attrs" json:"attrs,omitempty"`
	// Text marks the type as text-bearing. Inline non-atom types are
	// text-bearing whether or not the flag is set.
	Text bool `yaml:"text" json:"text,omitempty"`

	// Behavior flags consumed by traversal.
	Atom       bool `yaml:"atom" json:"atom,omitempty"`
	Editable   bool `yaml:"editable" json:"editable,omitempty"`
	Selectable bool `yaml:"selectable" json:"selectable,omitempty"`
	Draggable  bool `yaml:"draggable" json:"draggable,omitempty"`
	Droppable  bool `yaml:"droppable" json:"droppable,omitempty"`
	Indentable bool `yaml:"indentable" json:"indentable,omitempty"`

	// Indentation metadata.
	IndentGroup       string   `yaml:"indentGroup" json:"indentGroup,omitempty"`
	IndentParentTypes []string `yaml:"indentParentTypes" json:"indentParentTypes,omitempty"`
	MaxIndentLevel    int      `yaml:"maxIndentLevel" json:"maxIndentLevel,omitempty"`
}

// MarkTypeSpec is the declarative definition of a mark type.
type MarkTypeSpec struct {
	Group string              `yaml:"group" json:"group,omitempty"`
	Attrs map[string]AttrSpec `yaml:"attrs" json:"attrs,omitempty"`
}

// Spec is the input to New: the full declarative schema.
type Spec struct {
	TopNode string                  `yaml:"topNode" json:"topNode"`
	Nodes   map[string]NodeTypeSpec `yaml:"nodes" json:"nodes"`
	Marks   map[string]MarkTypeSpec `yaml:"marks" json:"marks,omitempty"`
}

// NodeType is a compiled node type: its spec plus the parsed content
// expression. NodeTypes are allocated once per Schema and shared.
type NodeType struct {
	Name    string
	Spec    NodeTypeSpec
	Content *ContentExpr // nil when the type holds no children
	schema  *Schema
}

// MarkType is a compiled mark type.
type MarkType struct {
	Name string
	Spec MarkTypeSpec
}

// Schema is the immutable compiled registry.
type Schema struct {
	topNode   string
	nodeTypes map[string]*NodeType
	markTypes map[string]*MarkType
	// groups maps a group name to the member type names, sorted.
	groups map[string][]string
}

// New compiles a Spec into a Schema. Compilation fails when the top node is
// unknown or a content expression references a name that is neither a node
// type nor a group.
func New(spec Spec) (*Schema, error) {
	s := &Schema{
		topNode:   spec.TopNode,
		nodeTypes: make(map[string]*NodeType, len(spec.Nodes)),
		markTypes: make(map[string]*MarkType, len(spec.Marks)),
		groups:    make(map[string][]string),
	}

	for name, ns := range spec.Nodes {
		s.nodeTypes[name] = &NodeType{Name: name, Spec: ns, schema: s}
		if ns.Group != "" {
			s.groups[ns.Group] = append(s.groups[ns.Group], name)
		}
	}
	for g := range s.groups {
		sort.Strings(s.groups[g])
	}
	for name, ms := range spec.Marks {
		s.markTypes[name] = &MarkType{Name: name, Spec: ms}
	}

	if spec.TopNode == "" {
		return nil, &ValidationError{Reasons: []string{"schema: topNode is required"}}
	}
	if _, ok := s.nodeTypes[spec.TopNode]; !ok {
		return nil, &ValidationError{Reasons: []string{
			fmt.Sprintf("schema: topNode %q is not a declared node type", spec.TopNode),
		}}
	}

	// Compile content expressions after all types are registered so
	// references resolve in either declaration order.
	var reasons []string
	for name, nt := range s.nodeTypes {
		if nt.Spec.Content == "" {
			continue
		}
		expr, err := ParseContentExpr(nt.Spec.Content)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("node type %q: %v", name, err))
			continue
		}
		for _, term := range expr.Terms {
			if !s.knownName(term.Name) {
				reasons = append(reasons, fmt.Sprintf(
					"node type %q: content references unknown type or group %q", name, term.Name))
			}
		}
		nt.Content = expr
	}
	if len(reasons) > 0 {
		sort.Strings(reasons)
		return nil, &ValidationError{Reasons: reasons}
	}

	return s, nil
}

// knownName reports whether name is a declared node type or group.
func (s *Schema) knownName(name string) bool {
	if _, ok := s.nodeTypes[name]; ok {
		return true
	}
	_, ok := s.groups[name]
	return ok
}

// TopNode returns the document root type name.
func (s *Schema) TopNode() string {
	return s.topNode
}

// NodeType looks up a node type by name, nil when unknown.
func (s *Schema) NodeType(name string) *NodeType {
	return s.nodeTypes[name]
}

// MarkType looks up a mark type by name, nil when unknown.
func (s *Schema) MarkType(name string) *MarkType {
	return s.markTypes[name]
}

// NodeTypeNames returns all declared node type names, sorted.
func (s *Schema) NodeTypeNames() []string {
	names := make([]string, 0, len(s.nodeTypes))
	for name := range s.nodeTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GroupMembers returns the type names in a group, sorted. Empty when the
// group is unknown.
func (s *Schema) GroupMembers(group string) []string {
	return s.groups[group]
}

// InGroup reports whether the named type belongs to the given group.
func (s *Schema) InGroup(typeName, group string) bool {
	nt := s.nodeTypes[typeName]
	return nt != nil && nt.Spec.Group == group
}

// Group returns the node type's group name.
func (nt *NodeType) Group() string {
	return nt.Spec.Group
}

// IsInline reports whether the type belongs to the inline group.
func (nt *NodeType) IsInline() bool {
	return nt.Spec.Group == "inline"
}

// IsBlock reports whether the type belongs to the block group.
func (nt *NodeType) IsBlock() bool {
	return nt.Spec.Group == "block"
}

// AllowsText reports whether instances of this type may carry a text field.
// Inline types are text-bearing unless declared atoms without text;
// editable blocks may carry text too.
func (nt *NodeType) AllowsText() bool {
	if nt.Spec.Text {
		return true
	}
	if nt.IsInline() && !nt.Spec.Atom {
		return true
	}
	return nt.Spec.Editable
}

// Allows reports whether a child of the given type name is admissible under
// this type's content expression. Both direct type names and the child
// type's group are checked.
func (nt *NodeType) Allows(childType string) bool {
	if nt.Content == nil {
		return false
	}
	child := nt.schema.NodeType(childType)
	for _, term := range nt.Content.Terms {
		if term.Name == childType {
			return true
		}
		if child != nil && child.Spec.Group == term.Name {
			return true
		}
	}
	return false
}

// expressionSummary is used in validation messages.
func (nt *NodeType) expressionSummary() string {
	if nt.Content == nil {
		return "(no content)"
	}
	return nt.Spec.Content
}

// ValidationError reports one or more schema violations in human-readable
// form. It is the single error kind the schema layer produces.
type ValidationError struct {
	Reasons []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Reasons) == 0 {
		return "schema validation failed"
	}
	return "schema validation failed: " + strings.Join(e.Reasons, "; ")
}
