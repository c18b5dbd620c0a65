// Package formula parses model formulas of the form
//
//	response ~ a + b + c:d + e*f - 1
//
// and turns them into design matrices.
//
// Supported operators: "+" adds a term, "a:b" is the interaction of a and b,
// "a*b" expands to "a + b + a:b", "1" keeps and "0" or "-1" removes the
// intercept. Terms are ordered by degree (main effects first) as in R.
package formula

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/YuminosukeSato/glmcv/pkg/errors"
)

// Term is a main effect (one variable) or an interaction (several).
type Term struct {
	Vars []string
}

// String renders the term as it appears in a formula.
func (t Term) String() string {
	return strings.Join(t.Vars, ":")
}

// Formula is a parsed model formula.
type Formula struct {
	Response  string
	Terms     []Term
	Intercept bool
}

// Parse parses a formula string.
func Parse(s string) (*Formula, error) {
	parts := strings.Split(s, "~")
	if len(parts) != 2 {
		return nil, errors.NewValidationError("formula", "expected exactly one '~'", s)
	}
	response := strings.TrimSpace(parts[0])
	if !isIdent(response) {
		return nil, errors.NewValidationError("formula", "response must be a single variable name", response)
	}

	f := &Formula{Response: response, Intercept: true}
	seen := make(map[string]bool)

	rhs := strings.TrimSpace(parts[1])
	if rhs == "" {
		return nil, errors.NewValidationError("formula", "empty right-hand side", s)
	}
	for _, tok := range splitSigned(rhs) {
		body := strings.TrimSpace(tok.body)
		if body == "" {
			return nil, errors.NewValidationError("formula", "empty term", s)
		}
		switch body {
		case "1":
			f.Intercept = !tok.minus
			continue
		case "0":
			if tok.minus {
				return nil, errors.NewValidationError("formula", "'- 0' is not meaningful", s)
			}
			f.Intercept = false
			continue
		}
		if tok.minus {
			return nil, errors.NewValidationError("formula", "only the intercept can be removed with '-'", body)
		}

		terms, err := expand(body)
		if err != nil {
			return nil, err
		}
		for _, t := range terms {
			for _, v := range t.Vars {
				if v == response {
					return nil, errors.NewValidationError("formula", "response appears on the right-hand side", v)
				}
			}
			key := t.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			f.Terms = append(f.Terms, t)
		}
	}

	sort.SliceStable(f.Terms, func(i, j int) bool {
		return len(f.Terms[i].Vars) < len(f.Terms[j].Vars)
	})
	return f, nil
}

// MustParse is like Parse but panics on error. It is meant for formulas
// written as literals in code.
func MustParse(s string) *Formula {
	f, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return f
}

// String renders the formula in canonical form.
func (f *Formula) String() string {
	var rhs []string
	for _, t := range f.Terms {
		rhs = append(rhs, t.String())
	}
	if !f.Intercept {
		rhs = append(rhs, "0")
	}
	if len(rhs) == 0 {
		rhs = append(rhs, "1")
	}
	return fmt.Sprintf("%s ~ %s", f.Response, strings.Join(rhs, " + "))
}

// Variables returns the distinct predictor variables in order of first use.
func (f *Formula) Variables() []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range f.Terms {
		for _, v := range t.Vars {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

type signedTerm struct {
	body  string
	minus bool
}

// splitSigned splits the right-hand side on top-level '+' and '-'.
func splitSigned(rhs string) []signedTerm {
	var out []signedTerm
	var cur strings.Builder
	minus := false
	for _, r := range rhs {
		if r == '+' || r == '-' {
			out = append(out, signedTerm{body: cur.String(), minus: minus})
			cur.Reset()
			minus = r == '-'
			continue
		}
		cur.WriteRune(r)
	}
	out = append(out, signedTerm{body: cur.String(), minus: minus})

	// a leading operator produces an empty first token
	if len(out) > 1 && strings.TrimSpace(out[0].body) == "" && !out[0].minus {
		out = out[1:]
	}
	return out
}

// expand turns "a*b:c" into its terms. '*' binds looser than ':'.
func expand(body string) ([]Term, error) {
	factors := strings.Split(body, "*")
	groups := make([][]string, 0, len(factors))
	for _, fac := range factors {
		vars := strings.Split(fac, ":")
		group := make([]string, 0, len(vars))
		for _, v := range vars {
			v = strings.TrimSpace(v)
			if !isIdent(v) {
				return nil, errors.NewValidationError("formula", "invalid variable name", v)
			}
			group = append(group, v)
		}
		groups = append(groups, group)
	}

	var terms []Term
	// every non-empty subset of the '*' factors, in subset-size order
	n := len(groups)
	for size := 1; size <= n; size++ {
		for mask := 1; mask < 1<<n; mask++ {
			if popcount(mask) != size {
				continue
			}
			var vars []string
			for i := 0; i < n; i++ {
				if mask&(1<<i) != 0 {
					vars = append(vars, groups[i]...)
				}
			}
			vars = dedupe(vars)
			terms = append(terms, Term{Vars: vars})
		}
	}
	return terms, nil
}

func popcount(x int) int {
	c := 0
	for x != 0 {
		x &= x - 1
		c++
	}
	return c
}

func dedupe(vars []string) []string {
	seen := make(map[string]bool, len(vars))
	out := vars[:0]
	for _, v := range vars {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case unicode.IsLetter(r), r == '_', r == '.':
		case unicode.IsDigit(r) && i > 0:
		default:
			return false
		}
	}
	return true
}
