package mcp

import (
	"demand-matrix/internal/diag"
)

// ResponseEnvelope is the uniform shape of every tool result.
type ResponseEnvelope struct {
	Data        any      `json:"data"`
	Diagnostics []string `json:"diagnostics,omitempty"`
	Guidance    []string `json:"guidance,omitempty"`
}

// WrapResponse bundles a payload with its diagnostics and follow-up hints.
func WrapResponse(data any, diagnostics []diag.Diagnostic, guidance []string) ResponseEnvelope {
	return ResponseEnvelope{
		Data:        data,
		Diagnostics: diag.Strings(diagnostics),
		Guidance:    guidance,
	}
}
