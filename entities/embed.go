// Package entities embeds the built-in entity declarations.
package entities

import "embed"

//go:embed *.yml
var FS embed.FS
