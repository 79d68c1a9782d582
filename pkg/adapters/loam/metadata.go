package loam

// RecipeMetadata is the frontmatter of a cookbook recipe.
// It uses "mapstructure" tags to match the keys of a config document, so a
// recipe's frontmatter is a config document with an optional id and
// description on top.
type RecipeMetadata struct {
	ID          string `json:"id" mapstructure:"id"`
	Description string `json:"description" mapstructure:"description"`

	Resources     []any `json:"resources" mapstructure:"resources"`
	ControlGroups []any `json:"control_groups" mapstructure:"control_groups"`
}

// raw rebuilds the document map handed to config.Decode. Absent lists stay
// absent so that an empty recipe decodes to an empty document.
func (m RecipeMetadata) raw() map[string]any {
	raw := make(map[string]any, 2)
	if m.Resources != nil {
		raw["resources"] = normalize(m.Resources)
	}
	if m.ControlGroups != nil {
		raw["control_groups"] = normalize(m.ControlGroups)
	}
	return raw
}
