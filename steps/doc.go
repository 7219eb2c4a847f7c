// Package steps provides the concrete pipeline steps: web search and
// result handling, daily and weekly notes, vault note management, Obsidian
// settings, vector ingestion and search, and audio inbox transcription.
//
// Nothing registers itself on import. Call RegisterAll with a Deps value
// (or one of the Register* group functions) to add steps to a registry.
// A step whose dependency is missing in Deps still registers and fails
// with a CONFIGURATION error when executed.
package steps
