// Package prompt provides the embedded prompt templates for the analysis
// passes. Templates are stored as text files under prompts/ and embedded at
// compile time; pass construction injects only the dynamic values (session
// start time, draft JSON) so prompt wording is data, not code.
package prompt

import (
	"bytes"
	_ "embed"
	"text/template"
)

// AuditorSystemInstruction is the fixed system instruction establishing the
// forensic auditor persona, the evidence rules, and the category taxonomy.
// Identical for every pass of a run.
//
//go:embed prompts/auditor-system.txt
var AuditorSystemInstruction string

//go:embed prompts/initial-analysis.txt
var initialAnalysisTemplate string

//go:embed prompts/self-audit.txt
var selfAuditTemplate string

//go:embed prompts/rerun-strict.txt
var rerunStrictTemplate string

// ReinforcementSuffix is appended to a pass prompt when the previous attempt
// returned unusable output.
const ReinforcementSuffix = "\n\nCRITICAL: Return a complete, valid JSON object matching the required schema. Do not return an empty object, prose, or a partial document."

// Pre-parsed templates. template.Must panics on malformed templates, catching
// errors at program startup rather than at call time.
var (
	initialTmpl = template.Must(template.New("initial").Parse(initialAnalysisTemplate))
	auditTmpl   = template.Must(template.New("audit").Parse(selfAuditTemplate))
	rerunTmpl   = template.Must(template.New("rerun").Parse(rerunStrictTemplate))
)

// Data holds the dynamic values injected into pass templates.
type Data struct {
	// StartTime is the official session start (HH:MM:SS). Events before it
	// are pre-session waiting and must not be reported.
	StartTime string

	// DraftJSON is the pass-1 report under audit. Only the self-audit pass
	// uses it.
	DraftJSON string
}

// RenderInitial renders the pass-1 analysis prompt.
func RenderInitial(startTime string) string {
	return render(initialTmpl, Data{StartTime: startTime})
}

// RenderSelfAudit renders the pass-2 prompt that verifies and corrects a
// draft report against the original evidence.
func RenderSelfAudit(startTime, draftJSON string) string {
	return render(auditTmpl, Data{StartTime: startTime, DraftJSON: draftJSON})
}

// RenderRerunStrict renders the stricter pass-3 prompt used when the quality
// gate rejects the audited result. Independent of any prior draft.
func RenderRerunStrict(startTime string) string {
	return render(rerunTmpl, Data{StartTime: startTime})
}

func render(tmpl *template.Template, data Data) string {
	var buf bytes.Buffer
	_ = tmpl.Execute(&buf, data)
	return buf.String()
}
