// Package schema validates raw, format-agnostic documents before they are
// decoded into typed values.
//
// A Schema maps field names to Types. Validation is strict: missing required
// fields and fields the schema does not name are both reported, and every
// failure carries the path of the offending value so that users can locate
// it in their input file.
//
//	resource := schema.Schema{
//	    "name":    schema.NonEmpty(),
//	    "actions": schema.Optional(schema.Slice(schema.Enum("start", "stop"))),
//	}
//
//	err := schema.Validate(schema.Schema{
//	    "resources": schema.Slice(schema.Object(resource)),
//	}, data)
//	for _, e := range schema.ValidationErrors(err) {
//	    // e.g. field "resources[1].actions[0]": must be one of [start stop]
//	}
//
// Tagged unions are described with Tagged, which selects the schema to apply
// from a discriminator field:
//
//	schema.Tagged("kind", map[string]schema.Schema{
//	    "package": {"name": schema.NonEmpty()},
//	    "file":    {"path": schema.NonEmpty(), "owner": schema.Optional(schema.String())},
//	})
//
// Values are expected in the shape produced by the common decoders (yaml.v3,
// encoding/json, BurntSushi/toml): maps keyed by string, slices of any, and
// the usual scalar types. Integers decoded as float64 are accepted when whole.
package schema
