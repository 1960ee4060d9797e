// YAML schema definition loading.
//
// Schema files are plain YAML:
//
//	topNode: doc
//	nodes:
//	  doc:
//	    group: document
//	    content: block+
//	  paragraph:
//	    group: block
//	    content: inline*
//	    editable: true
//	  inline-text:
//	    group: inline
//	    text: true
//	marks:
//	  bold: {group: formatting}
//	  link:
//	    group: navigation
//	    attrs:
//	      href: {required: true}
package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse builds a Schema from YAML bytes.
func Parse(data []byte) (*Schema, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return New(spec)
}

// Load builds a Schema from a YAML file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return Parse(data)
}
