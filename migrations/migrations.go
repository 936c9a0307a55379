// Package migrations embeds the schema and seed migrations for each supported engine.
package migrations

import "embed"

// FS holds one directory of golang-migrate files per dialect ("mysql", "sqlite").
//
//go:embed mysql/*.sql sqlite/*.sql
var FS embed.FS
