// Package seed embeds the default Multipoly ontology program.
package seed

import _ "embed"

// Program is the default seed in program format.
//
//go:embed multipoly.kb
var Program string

// Name identifies the embedded seed in logs and audit events.
const Name = "embedded:multipoly.kb"
