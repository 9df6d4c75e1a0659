package rbac

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Filter variable names. A compiled predicate refers to resource fields
// through these names; SQLConfig maps them onto concrete columns and Eval
// maps them onto Object fields.
const (
	VarID          = "object.id"
	VarClientID    = "object.client_id"
	VarClinicianID = "object.clinician_id"
	VarOrg         = "object.org"
)

// SQLColumn maps one filter variable onto a column expression.
type SQLColumn struct {
	// VarMatch matches the variable name. Capture groups may be used in
	// ColumnSelect with $1, $2, etc.
	VarMatch *regexp.Regexp
	// ColumnSelect is the column expression to emit. Values are compared
	// as text, so uuid columns should be cast.
	ColumnSelect string
}

// SQLConfig maps the filter variables onto one table's columns.
type SQLConfig struct {
	Variables []SQLColumn
}

func sqlConfig(vars map[string]string) SQLConfig {
	cfg := SQLConfig{}
	for name, col := range vars {
		cfg.Variables = append(cfg.Variables, SQLColumn{
			VarMatch:     regexp.MustCompile("^" + regexp.QuoteMeta(name) + "$"),
			ColumnSelect: col,
		})
	}
	return cfg
}

// ClientSQLConfig maps filter variables onto the clients table.
func ClientSQLConfig() SQLConfig {
	return sqlConfig(map[string]string{
		VarID:       "id :: text",
		VarClientID: "id :: text",
		VarOrg:      "organization_id :: text",
	})
}

// AppointmentSQLConfig maps filter variables onto the appointments table.
func AppointmentSQLConfig() SQLConfig {
	return sqlConfig(map[string]string{
		VarID:          "id :: text",
		VarClientID:    "client_id :: text",
		VarClinicianID: "clinician_id :: text",
		VarOrg:         "organization_id :: text",
	})
}

// ClinicalNoteSQLConfig maps filter variables onto the clinical_notes table.
func ClinicalNoteSQLConfig() SQLConfig {
	return sqlConfig(map[string]string{
		VarID:          "id :: text",
		VarClientID:    "client_id :: text",
		VarClinicianID: "clinician_id :: text",
		VarOrg:         "organization_id :: text",
	})
}

// BillingSQLConfig maps filter variables onto the billing_records table.
func BillingSQLConfig() SQLConfig {
	return sqlConfig(map[string]string{
		VarID:       "id :: text",
		VarClientID: "client_id :: text",
		VarOrg:      "organization_id :: text",
	})
}

// AuthorizeFilter is a compiled list predicate. SQLString produces a WHERE
// fragment for the SQL store; Eval lets the in-memory store (and the
// soundness tests) apply the identical predicate to a single row.
type AuthorizeFilter interface {
	// String is the debug form of the predicate.
	String() string
	// SQLString returns an expression usable in a WHERE clause.
	SQLString(cfg SQLConfig) string
	// Eval applies the predicate to one resource snapshot.
	Eval(object Object) bool
}

// Expression is a boolean-valued node of the predicate tree.
type Expression interface {
	AuthorizeFilter
}

// Term is a single value in an expression: a constant, a variable, or a
// set of constants.
type Term interface {
	String() string
	SQLString(cfg SQLConfig) string
	EvalTerm(object Object) interface{}
}

func matchAll() Expression  { return termBoolean{Value: true} }
func matchNone() Expression { return termBoolean{Value: false} }

func varTerm(name string) Term  { return termVariable{Name: name} }
func strTerm(value string) Term { return termString{Value: value} }

func setTerm(values []string) Term {
	terms := make([]Term, 0, len(values))
	for _, v := range values {
		terms = append(terms, strTerm(v))
	}
	return termSet{Value: terms}
}

func eq(a, b Term) Expression {
	return opEqual{Terms: [2]Term{a, b}}
}

// member builds an explicit set-membership test. An empty set collapses to
// a constant false: membership in nothing matches nothing, never "no
// constraint".
func member(needle Term, haystack []string) Expression {
	if len(haystack) == 0 {
		return matchNone()
	}
	return opMember{Needle: needle, Haystack: setTerm(haystack)}
}

// or joins expressions with OR, folding constants: any true operand makes
// the whole expression true, false operands are dropped, and no operands
// means match nothing.
func or(exprs ...Expression) Expression {
	kept := make([]Expression, 0, len(exprs))
	for _, expr := range exprs {
		if b, ok := expr.(termBoolean); ok {
			if b.Value {
				return matchAll()
			}
			continue
		}
		kept = append(kept, expr)
	}
	switch len(kept) {
	case 0:
		return matchNone()
	case 1:
		return kept[0]
	default:
		return expOr{Expressions: kept}
	}
}

// and joins expressions with AND, folding constants symmetrically to or.
func and(exprs ...Expression) Expression {
	kept := make([]Expression, 0, len(exprs))
	for _, expr := range exprs {
		if b, ok := expr.(termBoolean); ok {
			if !b.Value {
				return matchNone()
			}
			continue
		}
		kept = append(kept, expr)
	}
	switch len(kept) {
	case 0:
		return matchAll()
	case 1:
		return kept[0]
	default:
		return expAnd{Expressions: kept}
	}
}

type expOr struct {
	Expressions []Expression
}

func (t expOr) String() string {
	return joinExprs(t.Expressions, " OR ")
}

func (t expOr) SQLString(cfg SQLConfig) string {
	exprs := make([]string, 0, len(t.Expressions))
	for _, expr := range t.Expressions {
		exprs = append(exprs, expr.SQLString(cfg))
	}
	return "(" + strings.Join(exprs, " OR ") + ")"
}

func (t expOr) Eval(object Object) bool {
	for _, expr := range t.Expressions {
		if expr.Eval(object) {
			return true
		}
	}
	return false
}

type expAnd struct {
	Expressions []Expression
}

func (t expAnd) String() string {
	return joinExprs(t.Expressions, " AND ")
}

func (t expAnd) SQLString(cfg SQLConfig) string {
	exprs := make([]string, 0, len(t.Expressions))
	for _, expr := range t.Expressions {
		exprs = append(exprs, expr.SQLString(cfg))
	}
	return "(" + strings.Join(exprs, " AND ") + ")"
}

func (t expAnd) Eval(object Object) bool {
	for _, expr := range t.Expressions {
		if !expr.Eval(object) {
			return false
		}
	}
	return true
}

type opEqual struct {
	Terms [2]Term
}

func (t opEqual) String() string {
	return fmt.Sprintf("%s = %s", t.Terms[0].String(), t.Terms[1].String())
}

func (t opEqual) SQLString(cfg SQLConfig) string {
	return fmt.Sprintf("%s = %s", t.Terms[0].SQLString(cfg), t.Terms[1].SQLString(cfg))
}

func (t opEqual) Eval(object Object) bool {
	return t.Terms[0].EvalTerm(object) == t.Terms[1].EvalTerm(object)
}

// opMember tests membership of the needle in a non-empty constant set.
type opMember struct {
	Needle   Term
	Haystack Term
}

func (t opMember) String() string {
	return fmt.Sprintf("%s in %s", t.Needle.String(), t.Haystack.String())
}

func (t opMember) SQLString(cfg SQLConfig) string {
	return fmt.Sprintf("%s = ANY(%s)", t.Needle.SQLString(cfg), t.Haystack.SQLString(cfg))
}

func (t opMember) Eval(object Object) bool {
	needle := t.Needle.EvalTerm(object)
	set, ok := t.Haystack.EvalTerm(object).([]interface{})
	if !ok {
		return false
	}
	for _, elem := range set {
		if needle == elem {
			return true
		}
	}
	return false
}

type termString struct {
	Value string
}

func (t termString) String() string {
	return strconv.Quote(t.Value)
}

func (t termString) SQLString(_ SQLConfig) string {
	return "'" + strings.ReplaceAll(t.Value, "'", "''") + "'"
}

func (t termString) EvalTerm(_ Object) interface{} {
	return t.Value
}

type termVariable struct {
	Name string
}

func (t termVariable) String() string {
	return t.Name
}

func (t termVariable) SQLString(cfg SQLConfig) string {
	for _, col := range cfg.Variables {
		matches := col.VarMatch.FindStringSubmatch(t.Name)
		if len(matches) > 0 {
			replace := make([]string, 0, len(matches)*2)
			for i, m := range matches {
				replace = append(replace, fmt.Sprintf("$%d", i), m)
			}
			return strings.NewReplacer(replace...).Replace(col.ColumnSelect)
		}
	}
	return t.Name
}

func (t termVariable) EvalTerm(object Object) interface{} {
	switch t.Name {
	case VarID:
		return object.ID
	case VarClientID:
		return object.ClientID
	case VarClinicianID:
		return object.ClinicianID
	case VarOrg:
		return object.OrgID
	default:
		return fmt.Sprintf("'unknown variable %s'", t.Name)
	}
}

type termSet struct {
	Value []Term
}

func (t termSet) String() string {
	elems := make([]string, 0, len(t.Value))
	for _, v := range t.Value {
		elems = append(elems, v.String())
	}
	return "{" + strings.Join(elems, ", ") + "}"
}

func (t termSet) SQLString(cfg SQLConfig) string {
	elems := make([]string, 0, len(t.Value))
	for _, v := range t.Value {
		elems = append(elems, v.SQLString(cfg))
	}
	return fmt.Sprintf("ARRAY [%s]", strings.Join(elems, ","))
}

func (t termSet) EvalTerm(object Object) interface{} {
	set := make([]interface{}, 0, len(t.Value))
	for _, term := range t.Value {
		set = append(set, term.EvalTerm(object))
	}
	return set
}

type termBoolean struct {
	Value bool
}

func (t termBoolean) String() string {
	return strconv.FormatBool(t.Value)
}

func (t termBoolean) SQLString(_ SQLConfig) string {
	return strconv.FormatBool(t.Value)
}

func (t termBoolean) Eval(_ Object) bool {
	return t.Value
}

func (t termBoolean) EvalTerm(_ Object) interface{} {
	return t.Value
}

func joinExprs(exprs []Expression, sep string) string {
	parts := make([]string, 0, len(exprs))
	for _, expr := range exprs {
		parts = append(parts, expr.String())
	}
	return "(" + strings.Join(parts, sep) + ")"
}
