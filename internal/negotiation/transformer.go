// Package negotiation converts consent requests into the payload accepted by
// the external negotiation service.
package negotiation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/upcast-project/upconsent/internal/models"
	"github.com/upcast-project/upconsent/internal/policy"
)

const (
	policyURIPrefix   = "http://upcast-project.eu/policy/"
	resourceURIPrefix = "http://upcast-project.eu/resource/"
	defaultTag        = "consent-request"
	priceUnit         = "EUR/Month"

	TypeRequest    = "request"
	TypeOffer      = "offer"
	StatusPending  = "pending"
	StatusAccepted = "accepted"
)

// ResourceDescription describes the requested resource
type ResourceDescription struct {
	Title           string   `json:"title"`
	URI             string   `json:"uri"`
	Price           float64  `json:"price"`
	PriceUnit       string   `json:"price_unit"`
	TypeOfData      string   `json:"type_of_data"`
	GeographicScope *string  `json:"geographic_scope"`
	Tags            []string `json:"tags"`
	Publisher       *string  `json:"publisher"`
}

// ODRLPolicyEnvelope wraps the ODRL policy the way the negotiation service expects it
type ODRLPolicyEnvelope struct {
	ODRL map[string]interface{} `json:"odrl"`
}

// NegotiationPolicy is one side (request or offer) of a negotiation
type NegotiationPolicy struct {
	Title                     string                 `json:"title"`
	Type                      string                 `json:"type"`
	ConsumerID                string                 `json:"consumer_id"`
	ProviderID                string                 `json:"provider_id"`
	NaturalLanguageDocument   string                 `json:"natural_language_document"`
	ResourceDescriptionObject ResourceDescription    `json:"resource_description_object"`
	ODRLPolicy                ODRLPolicyEnvelope     `json:"odrl_policy"`
	CustomArguments           map[string]interface{} `json:"custom_arguments,omitempty"`
}

// Payload is the body sent to create a negotiation
type Payload struct {
	InitialOffer              NegotiationPolicy   `json:"initial_offer"`
	InitialRequest            NegotiationPolicy   `json:"initial_request"`
	NegotiationStatus         string              `json:"negotiation_status"`
	Title                     string              `json:"title"`
	ConsumerID                string              `json:"consumer_id"`
	ProviderID                string              `json:"provider_id"`
	NaturalLanguageDocument   string              `json:"natural_language_document"`
	ResourceDescriptionObject ResourceDescription `json:"resource_description_object"`
}

// Transformer builds negotiation payloads. Now supplies the timestamp used in
// synthesized policy uids.
type Transformer struct {
	Now func() time.Time
}

// NewTransformer creates a transformer using the wall clock
func NewTransformer() *Transformer {
	return &Transformer{Now: time.Now}
}

// Transform builds the negotiation payload for req. It performs no I/O and
// degrades every derived field to an empty value instead of failing.
func (t *Transformer) Transform(req *models.ConsentRequest, consumerID, providerID string) Payload {
	if req == nil {
		req = &models.ConsentRequest{}
	}

	slug := Slugify(req.RequestName)
	document := naturalLanguageDocument(req)
	odrl := t.selectPolicy(req, slug)

	existing, _ := policy.Decode(req.Policy)
	hints := typeHints(req, existing)

	rdo := ResourceDescription{
		Title:           req.RequestName,
		URI:             resourceURIPrefix + slugOrDefault(slug),
		Price:           0,
		PriceUnit:       priceUnit,
		TypeOfData:      strings.Join(hints, ", "),
		GeographicScope: geographicScope(existing),
		Tags:            tags(req, hints),
		Publisher:       publisher(req),
	}

	base := NegotiationPolicy{
		Title:                     req.RequestName,
		Type:                      TypeRequest,
		ConsumerID:                consumerID,
		ProviderID:                providerID,
		NaturalLanguageDocument:   document,
		ResourceDescriptionObject: rdo,
		ODRLPolicy:                ODRLPolicyEnvelope{ODRL: odrl},
		CustomArguments:           customClauses(req),
	}
	offer := base
	offer.Type = TypeOffer

	return Payload{
		InitialOffer:              offer,
		InitialRequest:            base,
		NegotiationStatus:         StatusPending,
		Title:                     req.RequestName,
		ConsumerID:                consumerID,
		ProviderID:                providerID,
		NaturalLanguageDocument:   document,
		ResourceDescriptionObject: rdo,
	}
}

func naturalLanguageDocument(req *models.ConsentRequest) string {
	var parts []string
	for _, field := range []string{req.ExtraTerms, req.ExtraText, req.AdditionalInfo, req.Notes, req.Text} {
		if s := strings.TrimSpace(field); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

func customClauses(req *models.ConsentRequest) map[string]interface{} {
	clauses := map[string]interface{}{}

	if req.ExtraTerms != "" {
		var restrictions []string
		for _, line := range strings.Split(req.ExtraTerms, "\n") {
			if s := strings.TrimSpace(line); s != "" {
				restrictions = append(restrictions, s)
			}
		}
		if len(restrictions) > 0 {
			clauses["data_usage_restrictions"] = restrictions
		}
	}

	if req.ExtraText != "" {
		var terms []string
		for _, paragraph := range paragraphBreak.Split(req.ExtraText, -1) {
			if s := strings.Join(strings.Fields(paragraph), " "); s != "" {
				terms = append(terms, s)
			}
		}
		if len(terms) > 0 {
			clauses["additional_terms_and_conditions"] = terms
		}
	}

	if len(clauses) == 0 {
		return nil
	}
	return clauses
}

// synthesizePermissions builds ODRL permissions from legacy permissions
func synthesizePermissions(req *models.ConsentRequest) []interface{} {
	permissions := make([]interface{}, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		action := policy.ODRLUseAction
		if len(p.ActionRefinements) > 0 && p.ActionRefinements[0].Value != "" {
			action = p.ActionRefinements[0].Value
		}

		entry := map[string]interface{}{
			"action": action,
			"target": p.Dataset,
		}

		if len(p.ConstraintRefinements) > 0 {
			constraints := make([]interface{}, 0, len(p.ConstraintRefinements))
			for _, r := range p.ConstraintRefinements {
				constraints = append(constraints, map[string]interface{}{
					"leftOperand":  r.Attribute,
					"operator":     "eq",
					"rightOperand": r.Value,
				})
			}
			entry["constraint"] = constraints
		}

		if id := req.RequesterID(); id != "" {
			entry["assignee"] = id
		}

		permissions = append(permissions, entry)
	}
	return permissions
}

// selectPolicy returns the ODRL policy to negotiate on. An existing policy
// is copied verbatim; otherwise one is synthesized from legacy permissions.
func (t *Transformer) selectPolicy(req *models.ConsentRequest, slug string) map[string]interface{} {
	if isAuthoritative(req.Policy) {
		source := req.Policy
		if nested, ok := req.Policy[policy.KeyODRL].(map[string]interface{}); ok {
			source = nested
		}

		out := make(map[string]interface{}, len(source)+1)
		for k, v := range source {
			out[k] = v
		}
		_, hasODRLPermission := out[policy.KeyODRLPermission]
		_, hasPermission := out[policy.KeyPermission]
		if !hasODRLPermission && !hasPermission {
			out[policy.KeyPermission] = synthesizePermissions(req)
		}
		return out
	}

	return map[string]interface{}{
		"permission":  synthesizePermissions(req),
		"prohibition": []interface{}{},
		"uid":         fmt.Sprintf("%s%s-%d", policyURIPrefix, slugOrDefault(slug), t.now().UnixMilli()),
		"@context":    policy.ODRLContext,
		"@type":       policy.ODRLPolicy,
	}
}

func isAuthoritative(p map[string]interface{}) bool {
	if p == nil {
		return false
	}
	for _, key := range []string{policy.KeyODRLPermission, policy.KeyPermission, policy.KeyODRL} {
		if _, ok := p[key]; ok {
			return true
		}
	}
	return false
}

func (t *Transformer) now() time.Time {
	if t.Now == nil {
		return time.Now()
	}
	return t.Now()
}

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugWhitespace   = regexp.MustCompile(`\s+`)
	slugHyphens      = regexp.MustCompile(`-+`)
)

// Slugify derives a URL-safe slug from a request name
func Slugify(name string) string {
	s := strings.ToLower(name)
	s = slugInvalidChars.ReplaceAllString(s, "")
	s = slugWhitespace.ReplaceAllString(s, "-")
	s = slugHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func slugOrDefault(slug string) string {
	if slug == "" {
		return defaultTag
	}
	return slug
}

// typeHints derives human words describing the requested data
func typeHints(req *models.ConsentRequest, existing policy.Policy) []string {
	seen := map[string]bool{}
	var hints []string
	add := func(hint string) {
		hint = strings.TrimSpace(strings.ReplaceAll(hint, "_", " "))
		if hint != "" && !seen[hint] {
			seen[hint] = true
			hints = append(hints, hint)
		}
	}

	if _, ok := req.Policy[policy.KeyODRLPermission]; ok {
		for _, rule := range existing.Permissions {
			add(policy.LocalName(rule.Action.First()))
		}
		return hints
	}

	for _, p := range req.Permissions {
		if p.Dataset != "" {
			add("dataset")
		}
		for _, r := range p.ActionRefinements {
			add(policy.LocalName(r.Value))
		}
	}
	return hints
}

// geographicScope returns the right operand of the first location-like constraint
func geographicScope(existing policy.Policy) *string {
	for _, rule := range existing.Permissions {
		for _, c := range rule.Constraints {
			fragment := strings.ToLower(policy.LocalName(c.LeftOperand.First()))
			if strings.Contains(fragment, "location") ||
				strings.Contains(fragment, "geographic") ||
				strings.Contains(fragment, "region") {
				scope := c.RightOperand.String()
				return &scope
			}
		}
	}
	return nil
}

func tags(req *models.ConsentRequest, hints []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, o := range req.SelectedOntologies {
		if o.Name != "" && !seen[o.Name] {
			seen[o.Name] = true
			out = append(out, o.Name)
		}
	}
	for _, h := range hints {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		return []string{defaultTag}
	}
	return out
}

func publisher(req *models.ConsentRequest) *string {
	if req.Requester == nil || req.Requester.RequesterName == "" {
		return nil
	}
	name := req.Requester.RequesterName
	return &name
}
