package rewrite

import (
	"slices"
	"strings"

	"github.com/gnoswap-labs/witness/internal/egraph"
)

// Subst binds pattern variables to classes. The zero value is empty and
// ready to use. Bindings keep the order in which they were made.
type Subst struct {
	vars []string
	ids  []egraph.ClassID
}

// Get returns the class bound to v.
func (s Subst) Get(v string) (egraph.ClassID, bool) {
	if i := slices.Index(s.vars, v); i >= 0 {
		return s.ids[i], true
	}
	return 0, false
}

// Len returns the number of bindings.
func (s Subst) Len() int {
	return len(s.vars)
}

// Vars returns the bound variables in binding order.
func (s Subst) Vars() []string {
	return slices.Clone(s.vars)
}

// With returns a copy of s with v bound to id.
func (s Subst) With(v string, id egraph.ClassID) Subst {
	out := Subst{
		vars: make([]string, len(s.vars), len(s.vars)+1),
		ids:  make([]egraph.ClassID, len(s.ids), len(s.ids)+1),
	}
	copy(out.vars, s.vars)
	copy(out.ids, s.ids)
	if i := slices.Index(out.vars, v); i >= 0 {
		out.ids[i] = id
		return out
	}
	out.vars = append(out.vars, v)
	out.ids = append(out.ids, id)
	return out
}

func (s Subst) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, v := range s.vars {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("?" + v + "=" + s.ids[i].String())
	}
	sb.WriteByte('}')
	return sb.String()
}

// Match is every consistent substitution under which a rule's left-hand
// side matched one class.
type Match struct {
	Class  egraph.ClassID
	Substs []Subst
}
