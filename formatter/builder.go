package formatter

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/fatih/color"

	"github.com/gnoswap-labs/witness"
	"github.com/gnoswap-labs/witness/internal/candidate"
	"github.com/gnoswap-labs/witness/internal/saturate"
)

const padding = "  "

var (
	errorStyle      = color.New(color.FgRed, color.Bold)
	warningStyle    = color.New(color.FgHiYellow, color.Bold)
	ruleStyle       = color.New(color.FgYellow, color.Bold)
	locationStyle   = color.New(color.FgCyan, color.Bold)
	lineStyle       = color.New(color.FgHiBlue, color.Bold)
	removedStyle    = color.New(color.FgRed)
	suggestionStyle = color.New(color.FgGreen, color.Bold)
	noStyle         = color.New(color.FgWhite)
)

// eventFormatter is the interface that wraps the EventTemplate method.
// Implementations render one kind of trace event.
type eventFormatter interface {
	EventTemplate() string
}

// getEventFormatter returns the formatter for ev. Events whose class was
// merged away have no after expression to show.
func getEventFormatter(ev saturate.Event) eventFormatter {
	if ev.After == saturate.Merged {
		return &MergedEventFormatter{}
	}
	return &GeneralEventFormatter{}
}

// GenerateFormattedTrace renders a rewrite trace in order.
func GenerateFormattedTrace(events []saturate.Event) string {
	var builder strings.Builder
	for _, ev := range events {
		builder.WriteString(buildEvent(ev, getEventFormatter(ev)))
	}
	return builder.String()
}

type EventData struct {
	Rewrite string
	Iter    int
	EClass  string
	Before  string
	After   string
	LHS     []string
	RHS     []string
	Padding string
}

var funcMap = template.FuncMap{
	"header":   header,
	"snippet":  snippet,
	"removed":  removed,
	"added":    added,
	"bindings": bindings,
	"note":     note,
}

func buildEvent(ev saturate.Event, formatter eventFormatter) string {
	data := EventData{
		Rewrite: ev.Rewrite,
		Iter:    ev.Iter,
		EClass:  ev.EClass.String(),
		Before:  ev.Before,
		After:   ev.After,
		LHS:     ev.LHS,
		RHS:     ev.RHS,
		Padding: padding,
	}
	return execute("event", formatter.EventTemplate(), data)
}

func execute(name, text string, data any) string {
	tmpl := template.Must(template.New(name).Funcs(funcMap).Parse(text))

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error formatting %s: %v", name, err)
	}
	return buf.String()
}

// GenerateFormattedCandidates renders the candidate list in order.
func GenerateFormattedCandidates(candidates []candidate.Candidate) string {
	var builder strings.Builder
	for _, c := range candidates {
		builder.WriteString(execute("candidate", candidateTemplate, CandidateData{
			Name:    c.Name,
			Lambda:  c.Lambda,
			Cost:    c.Cost,
			Expr:    c.Expr,
			Padding: padding,
		}))
	}
	return builder.String()
}

type CandidateData struct {
	Name    string
	Lambda  float64
	Cost    float64
	Expr    string
	Padding string
}

const candidateTemplate = `{{header "candidate" .Name (printf "lambda %.2f, cost %.2f" .Lambda .Cost) .Padding -}}
{{snippet .Expr .Padding}}

`

// Summary describes the outcome of a run in one line, plus a note when
// fewer candidates than requested were found.
func Summary(res *witness.Result, requested int) string {
	var endString string
	switch res.State {
	case saturate.Converged:
		endString = suggestionStyle.Sprint("converged")
	case saturate.IterationCapReached:
		endString = warningStyle.Sprint("iteration cap reached")
	default:
		endString = errorStyle.Sprint(res.State.String())
	}
	endString += noStyle.Sprintf(" after %d iteration(s): %d classes, %d nodes, %d rewrite(s), %d candidate(s)\n",
		res.Iterations, res.Classes, res.Nodes, len(res.Trace), len(res.Candidates))
	if res.Exhausted {
		endString += note(fmt.Sprintf("only %d of %d requested candidates are distinct", len(res.Candidates), requested))
	}
	return endString
}

// utils functions used in the text templates

func header(kind, name, location, padding string) string {
	var endString string
	endString = ruleStyle.Sprintf("%s: ", kind)
	endString += ruleStyle.Sprintf("%s\n", name)
	endString += lineStyle.Sprintf("%s--> ", padding[1:])
	endString += locationStyle.Sprintf("%s\n", location)
	return endString
}

func snippet(expr, padding string) string {
	var endString string
	endString = lineStyle.Sprintf("%s|\n", padding)
	endString += lineStyle.Sprintf("%s| ", padding)
	endString += noStyle.Sprintf("%s\n", expr)
	endString += lineStyle.Sprintf("%s|", padding)
	return endString
}

func removed(expr, padding string) string {
	return lineStyle.Sprintf("%s|\n", padding) +
		removedStyle.Sprint("-") + lineStyle.Sprint(" | ") + removedStyle.Sprintf("%s\n", expr)
}

func added(expr, padding string) string {
	return suggestionStyle.Sprint("+") + lineStyle.Sprint(" | ") + suggestionStyle.Sprintf("%s\n", expr) +
		lineStyle.Sprintf("%s|", padding)
}

func bindings(lhs, rhs []string, padding string) string {
	var endString string
	for i := range min(len(lhs), len(rhs)) {
		endString += lineStyle.Sprintf("%s= ", padding)
		endString += noStyle.Sprintf("%s => %s\n", lhs[i], rhs[i])
	}
	return endString
}

func note(note string) string {
	if note == "" {
		return ""
	}

	var endString string
	endString = suggestionStyle.Sprint("Note: ")
	endString += lineStyle.Sprintf("%s\n", note)
	return endString
}
