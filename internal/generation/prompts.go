package generation

import (
	"fmt"
	"strings"
	"text/template"

	"leadpilot/internal/lead"
	"leadpilot/internal/planner"
	"leadpilot/internal/traits"
)

// promptContext is the data fed into a step template.
type promptContext struct {
	Lead          lead.Context
	Traits        []traits.Trait
	PrimaryTrait  string
	Angle         string
	Tone          string
	Step          string
	Attempt       int
	PriorIssues   []string
	PriorMessages []Message
}

// stepTemplates holds one named prompt template per known step identifier.
// Unknown steps use the generic template.
var stepTemplates = map[string]string{
	"intro": `You are writing the opening email of an outreach sequence.
Write a short, {{.Tone}} introduction to {{.Lead.Name}}{{if .Lead.Title}} ({{.Lead.Title}}){{end}} at {{.Lead.Company}}.
Angle: {{.Angle}}.
{{template "signals" .}}
{{template "format" .}}{{template "retry" .}}`,

	"value_prop": `You are writing the second email of an outreach sequence to {{.Lead.Name}} at {{.Lead.Company}}.
Make the value proposition concrete for their business. Angle: {{.Angle}}. Tone: {{.Tone}}.
{{template "signals" .}}{{template "continuity" .}}
{{template "format" .}}{{template "retry" .}}`,

	"insight": `You are writing an insight-led email to {{.Lead.Name}} at {{.Lead.Company}}.
Lead with a specific market or technology observation relevant to them. Angle: {{.Angle}}. Tone: {{.Tone}}.
{{template "signals" .}}{{template "continuity" .}}
{{template "format" .}}{{template "retry" .}}`,

	"case_study": `You are writing a proof-point email to {{.Lead.Name}} at {{.Lead.Company}}.
Reference a concrete client result that maps to their situation. Angle: {{.Angle}}. Tone: {{.Tone}}.
{{template "signals" .}}{{template "continuity" .}}
{{template "format" .}}{{template "retry" .}}`,

	"credibility": `You are writing a trust-building email to {{.Lead.Name}} at {{.Lead.Company}}.
Emphasize reliability, compliance and track record. Angle: {{.Angle}}. Tone: {{.Tone}}.
{{template "signals" .}}{{template "continuity" .}}
{{template "format" .}}{{template "retry" .}}`,

	"call_to_action": `You are writing the closing email of an outreach sequence to {{.Lead.Name}} at {{.Lead.Company}}.
Ask clearly for one small next step. Angle: {{.Angle}}. Tone: {{.Tone}}.
{{template "signals" .}}{{template "continuity" .}}
{{template "format" .}}{{template "retry" .}}`,
}

const genericTemplate = `You are writing an outreach email ({{.Step}}) to {{.Lead.Name}} at {{.Lead.Company}}.
Angle: {{.Angle}}. Tone: {{.Tone}}.
{{template "signals" .}}{{template "continuity" .}}
{{template "format" .}}{{template "retry" .}}`

// Shared template fragments.
const sharedDefs = `
{{define "signals"}}{{if .Lead.CompanyDescription}}Company context: {{.Lead.CompanyDescription}}
{{end}}{{if .Traits}}Detected attributes: {{range $i, $t := .Traits}}{{if $i}}, {{end}}{{$t.Name}}{{end}}.
{{end}}{{end}}

{{define "continuity"}}{{if .PriorMessages}}Earlier approved messages in this sequence, for narrative consistency:
{{range .PriorMessages}}- [{{.Step}}] {{.Subject}}
{{end}}{{end}}{{end}}

{{define "format"}}Respond in exactly this format:
Subject: <subject line>

Body: <the email body>{{end}}

{{define "retry"}}{{if .PriorIssues}}

A previous draft was rejected for these reasons; avoid repeating them:
{{range .PriorIssues}}- {{.}}
{{end}}{{end}}{{end}}`

// parsedTemplates compiles the step templates once at init.
var parsedTemplates = func() map[string]*template.Template {
	out := make(map[string]*template.Template, len(stepTemplates)+1)
	for step, body := range stepTemplates {
		out[step] = template.Must(template.New(step).Parse(sharedDefs + body))
	}
	out[""] = template.Must(template.New("generic").Parse(sharedDefs + genericTemplate))
	return out
}()

// buildPrompt renders the prompt for one step.
func buildPrompt(pc promptContext) (string, error) {
	tmpl, ok := parsedTemplates[pc.Step]
	if !ok {
		tmpl = parsedTemplates[""]
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, pc); err != nil {
		return "", fmt.Errorf("failed to render %q prompt: %w", pc.Step, err)
	}
	return sb.String(), nil
}

// buildPromptContext assembles template data from run state.
func buildPromptContext(step string, lc lead.Context, set traits.Set, plan planner.Plan,
	attempt int, priorIssues []string, priorMessages []Message) promptContext {
	return promptContext{
		Lead:          lc,
		Traits:        set.Traits,
		PrimaryTrait:  set.Primary.Name,
		Angle:         plan.Angle,
		Tone:          plan.Tone,
		Step:          step,
		Attempt:       attempt,
		PriorIssues:   priorIssues,
		PriorMessages: priorMessages,
	}
}
