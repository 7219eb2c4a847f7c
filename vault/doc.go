// Package vault manages an Obsidian-style note vault on the local
// filesystem: markdown notes with YAML frontmatter, glossary pages linked
// from notes, and the .obsidian settings directory (plugins, themes, CSS
// snippets).
//
// Every path handed to a Vault is relative to its root; paths that resolve
// outside the root are rejected. All writes go through a temporary file and
// a rename, so a crash never leaves a half-written note.
package vault
