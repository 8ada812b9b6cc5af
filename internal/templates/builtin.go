package templates

import (
	_ "embed"

	"github.com/BurntSushi/toml"

	"github.com/taskmcp/taskmcp/internal/types"
)

//go:embed builtin.toml
var builtinTOML []byte

// builtinDoc is the on-disk shape of builtin.toml, compiled into the binary
// the way BuiltinRecipes in the teacher's internal/recipes package is a
// literal map — here the literal lives in TOML rather than Go source since
// each entry carries nested Section prototypes.
type builtinDoc struct {
	Template []builtinTemplate `toml:"template"`
}

type builtinTemplate struct {
	Name             string           `toml:"name"`
	Description      string           `toml:"description"`
	TargetEntityType string           `toml:"target_entity_type"`
	Section          []builtinSection `toml:"section"`
}

type builtinSection struct {
	Title            string `toml:"title"`
	UsageDescription string `toml:"usage_description"`
	ContentFormat    string `toml:"content_format"`
}

// Builtins returns the compiled built-in Template definitions, freshly
// instantiated (each with a new ID) every call so callers can seed a store
// without sharing mutable state.
func Builtins() ([]*types.Template, error) {
	var doc builtinDoc
	if err := toml.Unmarshal(builtinTOML, &doc); err != nil {
		return nil, err
	}

	out := make([]*types.Template, 0, len(doc.Template))
	for _, bt := range doc.Template {
		tmpl := &types.Template{
			ID:               types.NewID(),
			Name:             bt.Name,
			Description:      bt.Description,
			TargetEntityType: types.EntityType(bt.TargetEntityType),
			IsBuiltin:        true,
			IsEnabled:        true,
		}
		for i, bs := range bt.Section {
			tmpl.Sections = append(tmpl.Sections, types.SectionPrototype{
				Title:            bs.Title,
				UsageDescription: bs.UsageDescription,
				ContentFormat:    types.ContentFormat(bs.ContentFormat),
				Ordinal:          i,
			})
		}
		out = append(out, tmpl)
	}
	return out, nil
}
