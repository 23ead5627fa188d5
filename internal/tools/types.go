// Package tools implements the tool registry (C2): a catalog of
// environment-gated tools, each exposing a name, a JSON schema, a short
// description, and an invoke(args) -> string entrypoint. Individual
// finance/web tools are treated as external collaborators per spec §1 —
// builtin/ contains only the pure-function contract stubs needed to
// exercise the registry and the agent loop end to end.
package tools

import "context"

// Tool is a single registered capability. invoke always returns a string;
// structured results are JSON-serialized by the implementation before
// returning, per spec §4.2.
type Tool interface {
	Name() string
	Description() string
	JSONSchema() map[string]any
	// Capabilities lists env-var keys that must be present for this tool
	// to be registered (environment-gated presence per spec §4.2).
	Capabilities() []string
	Invoke(ctx context.Context, args map[string]any) (string, error)
}

// Entry is one row of the registry's catalog view, spec §4.2's
// `{name, tool, richDescription}`.
type Entry struct {
	Name            string
	Tool            Tool
	RichDescription string
}
