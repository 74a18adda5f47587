package policy

import (
	"strings"

	"github.com/upcast-project/upconsent/internal/models"
)

// Display placeholders for legacy permissions with missing fields
const (
	DefaultPurpose = "General use"
	UnknownDataset = "Unknown dataset"
	UnknownAction  = "Unknown action"
	UnknownPurpose = "Unknown purpose"
)

// ParsedConstraint is a display-ready constraint or refinement
type ParsedConstraint struct {
	LeftOperand  string   `json:"leftOperand"`
	Operator     string   `json:"operator"`
	RightOperand string   `json:"rightOperand"`
	Values       []string `json:"values"`
	Description  string   `json:"description"`
}

// ParsedAssignee is a display-ready assignee
type ParsedAssignee struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Refinement *ParsedConstraint `json:"refinement,omitempty"`
}

// ParsedPermission is the normalized permission shown to users
type ParsedPermission struct {
	Action                string              `json:"action"`
	Dataset               string              `json:"dataset"`
	Purpose               string              `json:"purpose"`
	Constraints           []ParsedConstraint  `json:"constraints"`
	Assignees             []ParsedAssignee    `json:"assignees"`
	DatasetRefinements    []models.Refinement `json:"datasetRefinements"`
	ActionRefinements     []models.Refinement `json:"actionRefinements"`
	PurposeRefinements    []models.Refinement `json:"purposeRefinements"`
	ConstraintRefinements []models.Refinement `json:"constraintRefinements"`
}

// GetPermissions returns the request's permissions in one normalized shape,
// whichever way they are stored. It returns an empty slice when neither
// shape is present.
func GetPermissions(req *models.ConsentRequest) []ParsedPermission {
	source := ResolveSource(req)
	switch source.Kind {
	case SourceODRL:
		return parseODRL(source.ODRL)
	case SourceLegacy:
		return parseLegacy(source.Legacy)
	default:
		return []ParsedPermission{}
	}
}

func parseODRL(p Policy) []ParsedPermission {
	out := make([]ParsedPermission, 0, len(p.Permissions))
	for _, rule := range p.Permissions {
		constraints := make([]ParsedConstraint, 0, len(rule.Constraints))
		for _, c := range rule.Constraints {
			constraints = append(constraints, parseConstraint(c))
		}

		assignees := make([]ParsedAssignee, 0, len(rule.Assignees))
		for _, party := range rule.Assignees {
			id := party.ID.First()
			assignee := ParsedAssignee{ID: id, Name: ExtractReadableName(id)}
			if party.Refinement != nil {
				r := parseConstraint(*party.Refinement)
				assignee.Refinement = &r
			}
			assignees = append(assignees, assignee)
		}

		out = append(out, ParsedPermission{
			Action:                ExtractReadableName(rule.Action.First()),
			Dataset:               ExtractReadableName(rule.Target.First()),
			Purpose:               derivePurpose(constraints),
			Constraints:           constraints,
			Assignees:             assignees,
			DatasetRefinements:    []models.Refinement{},
			ActionRefinements:     []models.Refinement{},
			PurposeRefinements:    []models.Refinement{},
			ConstraintRefinements: []models.Refinement{},
		})
	}
	return out
}

func parseConstraint(c Constraint) ParsedConstraint {
	left := ExtractReadableName(c.LeftOperand.First())
	operator := ExtractReadableName(c.Operator.First())
	values := readableValues(c.RightOperand)
	right := strings.Join(values, ", ")

	description := left + " " + operator
	if right != "" {
		description += " " + right
	}

	return ParsedConstraint{
		LeftOperand:  left,
		Operator:     operator,
		RightOperand: right,
		Values:       values,
		Description:  description,
	}
}

// readableValues normalizes a right operand. References and IRI-like
// scalars become readable names, literals keep their text.
func readableValues(t Term) []string {
	var out []string
	switch t.Kind {
	case TermReference:
		out = append(out, ExtractReadableName(t.Value))
	case TermScalar:
		if looksLikeIRI(t.Value) {
			out = append(out, ExtractReadableName(t.Value))
		} else if v := strings.TrimSpace(t.Value); v != "" {
			out = append(out, v)
		}
	case TermLiteral:
		if v := strings.TrimSpace(t.Value); v != "" {
			out = append(out, v)
		}
	case TermList:
		for _, item := range t.Items {
			out = append(out, readableValues(item)...)
		}
	}
	if out == nil {
		return []string{}
	}
	return out
}

func derivePurpose(constraints []ParsedConstraint) string {
	var purposes []string
	for _, c := range constraints {
		if strings.Contains(strings.ToLower(c.LeftOperand), "purpose") &&
			strings.Contains(strings.ToLower(c.Operator), "any") {
			purposes = append(purposes, c.Values...)
		}
	}
	if len(purposes) == 0 {
		return DefaultPurpose
	}
	return strings.Join(purposes, ", ")
}

func parseLegacy(permissions []models.Permission) []ParsedPermission {
	out := make([]ParsedPermission, 0, len(permissions))
	for _, p := range permissions {
		out = append(out, ParsedPermission{
			Action:                orDefault(p.Action, UnknownAction),
			Dataset:               orDefault(p.Dataset, UnknownDataset),
			Purpose:               orDefault(p.Purpose, UnknownPurpose),
			Constraints:           []ParsedConstraint{},
			Assignees:             []ParsedAssignee{},
			DatasetRefinements:    orEmpty(p.DatasetRefinements),
			ActionRefinements:     orEmpty(p.ActionRefinements),
			PurposeRefinements:    orEmpty(p.PurposeRefinements),
			ConstraintRefinements: orEmpty(p.ConstraintRefinements),
		})
	}
	return out
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func orEmpty(refinements []models.Refinement) []models.Refinement {
	if refinements == nil {
		return []models.Refinement{}
	}
	return refinements
}
