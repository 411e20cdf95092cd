package formatter

type GeneralEventFormatter struct{}

func (f *GeneralEventFormatter) EventTemplate() string {
	return `{{header "rewrite" .Rewrite (printf "iter %d, class %s" .Iter .EClass) .Padding -}}
{{removed .Before .Padding -}}
{{added .After .Padding}}
{{bindings .LHS .RHS .Padding}}
`
}

// MergedEventFormatter renders an event whose class was absorbed by
// another class.
type MergedEventFormatter struct{}

func (f *MergedEventFormatter) EventTemplate() string {
	return `{{header "rewrite" .Rewrite (printf "iter %d, class %s" .Iter .EClass) .Padding -}}
{{removed .Before .Padding -}}
{{.Padding}}= merged into another class
{{bindings .LHS .RHS .Padding}}
`
}
