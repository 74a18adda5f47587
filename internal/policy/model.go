// Package policy provides a typed view over stored ODRL JSON-LD policies and
// normalizes both ODRL and legacy permission shapes for display.
package policy

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/upcast-project/upconsent/internal/models"
)

// ODRL vocabulary constants
const (
	ODRLNamespace = "http://www.w3.org/ns/odrl/2/"
	ODRLContext   = "http://www.w3.org/ns/odrl.jsonld"
	ODRLPolicy    = "http://www.w3.org/ns/odrl/2/Policy"
	ODRLUseAction = "http://www.w3.org/ns/odrl/2/use"

	KeyContext        = "@context"
	KeyODRLPermission = "odrl:permission"
	KeyPermission     = "permission"
	KeyODRL           = "odrl"
)

// TermKind tells which JSON-LD shape a value had
type TermKind int

const (
	// TermAbsent marks a missing or null value
	TermAbsent TermKind = iota
	// TermScalar is a bare string, number or boolean
	TermScalar
	// TermReference is an {"@id": ...} node reference
	TermReference
	// TermLiteral is an {"@value": ...} literal
	TermLiteral
	// TermList is a JSON array or an {"@list": [...]} container
	TermList
	// TermObject is any other object
	TermObject
)

// Term is a JSON-LD value with its shape made explicit
type Term struct {
	Kind   TermKind
	Value  string
	Items  []Term
	Fields map[string]interface{}
}

// NewTerm classifies a decoded JSON value
func NewTerm(v interface{}) Term {
	switch t := v.(type) {
	case nil:
		return Term{Kind: TermAbsent}
	case string:
		return Term{Kind: TermScalar, Value: t}
	case float64:
		return Term{Kind: TermScalar, Value: strconv.FormatFloat(t, 'f', -1, 64)}
	case json.Number:
		return Term{Kind: TermScalar, Value: t.String()}
	case bool:
		return Term{Kind: TermScalar, Value: strconv.FormatBool(t)}
	case int, int32, int64:
		return Term{Kind: TermScalar, Value: fmt.Sprint(t)}
	case []interface{}:
		return newListTerm(t)
	case map[string]interface{}:
		if id, ok := t["@id"].(string); ok {
			return Term{Kind: TermReference, Value: id, Fields: t}
		}
		if val, ok := t["@value"]; ok {
			inner := NewTerm(val)
			return Term{Kind: TermLiteral, Value: inner.String(), Fields: t}
		}
		if list, ok := t["@list"]; ok {
			if items, isArray := list.([]interface{}); isArray {
				return newListTerm(items)
			}
			return newListTerm([]interface{}{list})
		}
		return Term{Kind: TermObject, Fields: t}
	default:
		return Term{Kind: TermScalar, Value: fmt.Sprint(t)}
	}
}

func newListTerm(values []interface{}) Term {
	items := make([]Term, 0, len(values))
	for _, v := range values {
		item := NewTerm(v)
		if item.Kind != TermAbsent {
			items = append(items, item)
		}
	}
	return Term{Kind: TermList, Items: items}
}

// IsAbsent reports whether the term carries no value
func (t Term) IsAbsent() bool {
	return t.Kind == TermAbsent
}

// Values flattens the term into its string values
func (t Term) Values() []string {
	switch t.Kind {
	case TermScalar, TermReference, TermLiteral:
		if t.Value == "" {
			return nil
		}
		return []string{t.Value}
	case TermList:
		var out []string
		for _, item := range t.Items {
			out = append(out, item.Values()...)
		}
		return out
	default:
		return nil
	}
}

// First returns the first string value or ""
func (t Term) First() string {
	values := t.Values()
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// String joins all values with ", "
func (t Term) String() string {
	return strings.Join(t.Values(), ", ")
}

// Field looks up an ODRL property on an object or reference term
func (t Term) Field(name string) Term {
	if t.Fields == nil {
		return Term{Kind: TermAbsent}
	}
	return NewTerm(lookup(t.Fields, name))
}

// Constraint is an ODRL constraint or refinement
type Constraint struct {
	LeftOperand  Term
	Operator     Term
	RightOperand Term
}

// Party is an ODRL assignee with at most one refinement
type Party struct {
	ID         Term
	Refinement *Constraint
}

// Rule is one ODRL permission entry
type Rule struct {
	Action      Term
	Target      Term
	Assignees   []Party
	Constraints []Constraint
}

// Policy is the typed view over an ODRL policy document
type Policy struct {
	Context     Term
	UID         Term
	Permissions []Rule
}

// Decode builds the typed view of a raw policy. The second result is false
// when raw is nil.
func Decode(raw map[string]interface{}) (Policy, bool) {
	if raw == nil {
		return Policy{}, false
	}
	p := Policy{
		Context: NewTerm(raw[KeyContext]),
		UID:     NewTerm(lookup(raw, "uid")),
	}
	for _, entry := range asObjects(lookup(raw, KeyPermission)) {
		p.Permissions = append(p.Permissions, decodeRule(entry))
	}
	return p, true
}

func decodeRule(entry map[string]interface{}) Rule {
	rule := Rule{
		Action: NewTerm(lookup(entry, "action")),
		Target: NewTerm(lookup(entry, "target")),
	}
	for _, c := range asObjects(lookup(entry, "constraint")) {
		rule.Constraints = append(rule.Constraints, decodeConstraint(c))
	}
	rule.Assignees = decodeParties(lookup(entry, "assignee"))
	return rule
}

func decodeConstraint(c map[string]interface{}) Constraint {
	return Constraint{
		LeftOperand:  NewTerm(lookup(c, "leftOperand")),
		Operator:     NewTerm(lookup(c, "operator")),
		RightOperand: NewTerm(lookup(c, "rightOperand")),
	}
}

func decodeParties(v interface{}) []Party {
	var values []interface{}
	switch t := v.(type) {
	case nil:
		return nil
	case []interface{}:
		values = t
	default:
		values = []interface{}{t}
	}

	parties := make([]Party, 0, len(values))
	for _, value := range values {
		switch t := value.(type) {
		case string:
			parties = append(parties, Party{ID: NewTerm(t)})
		case map[string]interface{}:
			party := Party{ID: partyID(t)}
			if refinements := asObjects(lookup(t, "refinement")); len(refinements) > 0 {
				r := decodeConstraint(refinements[0])
				party.Refinement = &r
			}
			parties = append(parties, party)
		}
	}
	return parties
}

func partyID(m map[string]interface{}) Term {
	if id, ok := m["@id"].(string); ok {
		return NewTerm(id)
	}
	if uid := NewTerm(lookup(m, "uid")); !uid.IsAbsent() {
		return uid
	}
	return NewTerm(lookup(m, "source"))
}

// lookup finds an ODRL property under its prefixed, bare or full IRI key
func lookup(m map[string]interface{}, name string) interface{} {
	if v, ok := m["odrl:"+name]; ok {
		return v
	}
	if v, ok := m[name]; ok {
		return v
	}
	if v, ok := m[ODRLNamespace+name]; ok {
		return v
	}
	return nil
}

// asObjects returns the object entries of an array or single object value
func asObjects(v interface{}) []map[string]interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		if list, ok := t["@list"]; ok {
			return asObjects(list)
		}
		return []map[string]interface{}{t}
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

// HasODRLPolicy reports whether the request stores an ODRL JSON-LD policy
func HasODRLPolicy(req *models.ConsentRequest) bool {
	if req == nil || req.Policy == nil {
		return false
	}
	if ctx, ok := req.Policy[KeyContext]; !ok || ctx == nil {
		return false
	}
	_, isArray := req.Policy[KeyODRLPermission].([]interface{})
	return isArray
}

// SourceKind identifies where a request's permissions come from
type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceODRL
	SourceLegacy
)

// Source is the resolved permission source of a request
type Source struct {
	Kind   SourceKind
	ODRL   Policy
	Legacy []models.Permission
}

// ResolveSource picks the permission source once per request
func ResolveSource(req *models.ConsentRequest) Source {
	if HasODRLPolicy(req) {
		p, _ := Decode(req.Policy)
		return Source{Kind: SourceODRL, ODRL: p}
	}
	if req != nil && len(req.Permissions) > 0 {
		return Source{Kind: SourceLegacy, Legacy: req.Permissions}
	}
	return Source{Kind: SourceNone}
}
