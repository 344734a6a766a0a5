package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/skeletex/cogs/logging"
	"github.com/skeletex/cogs/octree"
	"github.com/skeletex/cogs/selection"
)

// Schema returns the JSON schema of every config section, keyed by section name. Sections are
// reflected separately because several of them share the type name Config.
func Schema() map[string]*jsonschema.Schema {
	return map[string]*jsonschema.Schema{
		"octree":    jsonschema.Reflect(&octree.Config{}),
		"aabb_tree": jsonschema.Reflect(&AabbTreeConfig{}),
		"selection": jsonschema.Reflect(&selection.Config{}),
		"log":       jsonschema.Reflect(&logging.Options{}),
	}
}

// SchemaJSON returns the indented JSON of Schema.
func SchemaJSON() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}
