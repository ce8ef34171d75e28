package diag

import "fmt"

// Severity grades how much a diagnostic affected the computation.
type Severity string

const (
	// Info marks an explicit but expected fallback (e.g. synthesized periods).
	Info Severity = "info"
	// Warning marks an input that was skipped or degraded.
	Warning Severity = "warning"
	// Error marks a stage that failed and was replaced by a safe result.
	Error Severity = "error"
)

// Diagnostic is the side channel every pipeline stage returns alongside its value.
// Stages never abort the whole computation for a single bad record; they emit one of these instead.
type Diagnostic struct {
	Stage    string   `json:"stage"`
	Subject  string   `json:"subject,omitempty"`
	Reason   string   `json:"reason"`
	Severity Severity `json:"severity"`
}

func (d Diagnostic) String() string {
	if d.Subject == "" {
		return fmt.Sprintf("[%s] %s: %s", d.Severity, d.Stage, d.Reason)
	}
	return fmt.Sprintf("[%s] %s (%s): %s", d.Severity, d.Stage, d.Subject, d.Reason)
}

// Warn builds a warning-level diagnostic.
func Warn(stage, subject, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Stage: stage, Subject: subject, Reason: fmt.Sprintf(format, args...), Severity: Warning}
}

// Note builds an info-level diagnostic.
func Note(stage, subject, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Stage: stage, Subject: subject, Reason: fmt.Sprintf(format, args...), Severity: Info}
}

// Fail builds an error-level diagnostic.
func Fail(stage, subject, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Stage: stage, Subject: subject, Reason: fmt.Sprintf(format, args...), Severity: Error}
}

// Strings flattens diagnostics for presentation layers that only render text.
func Strings(ds []Diagnostic) []string {
	if len(ds) == 0 {
		return nil
	}
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}

// HasErrors reports whether any diagnostic is error-level.
func HasErrors(ds []Diagnostic) bool {
	for _, d := range ds {
		if d.Severity == Error {
			return true
		}
	}
	return false
}
