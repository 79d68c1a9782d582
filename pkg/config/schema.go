package config

import "github.com/aretw0/steward/pkg/schema"

var negate = schema.Optional(schema.Bool())

var resourceVariants = map[string]schema.Schema{
	"package": {
		"name": schema.NonEmpty(),
	},
	"service": {
		"name":    schema.NonEmpty(),
		"actions": schema.Optional(schema.Slice(schema.Enum("start", "stop", "enable", "disable"))),
	},
	"file": {
		"path":    schema.NonEmpty(),
		"content": schema.Optional(schema.String()),
		"owner":   schema.Optional(schema.NonEmpty()),
		"user":    schema.Optional(schema.NonEmpty()),
		"group":   schema.Optional(schema.NonEmpty()),
	},
}

var assertionVariants = map[string]schema.Schema{
	"service_running": {
		"service": schema.NonEmpty(),
		"negate":  negate,
	},
	"service_enabled": {
		"service": schema.NonEmpty(),
		"negate":  negate,
	},
	"file_owned_by": {
		"path":   schema.NonEmpty(),
		"user":   schema.NonEmpty(),
		"negate": negate,
	},
}

// DocumentSchema describes a raw input document.
var DocumentSchema = schema.Schema{
	"resources": schema.Optional(schema.Slice(schema.Tagged("kind", resourceVariants))),
	"control_groups": schema.Optional(schema.Slice(schema.Object(schema.Schema{
		"name": schema.NonEmpty(),
		"controls": schema.Slice(schema.Object(schema.Schema{
			"name":       schema.NonEmpty(),
			"assertions": schema.Slice(schema.Tagged("kind", assertionVariants)),
		})),
	}))),
}
