// Package handlers implements the business logic for CLI commands.
//
// Handlers are framework-agnostic: they take a context and plain options and
// wire the orchestrator to its real collaborators. The collaborators are
// created through package-level factory variables that tests replace.
package handlers
