package negotiation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upcast-project/upconsent/internal/models"
)

func fixedTransformer() *Transformer {
	return &Transformer{Now: func() time.Time { return time.UnixMilli(1700000000000) }}
}

func jsonMap(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"My Request! #1", "my-request-1"},
		{"  Hello   World  ", "hello-world"},
		{"already-slugged", "already-slugged"},
		{"a -- b", "a-b"},
		{"--Edge--", "edge"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.input))
		})
	}
}

func TestTransform_CustomClauses(t *testing.T) {
	req := &models.ConsentRequest{
		RequestName: "Clauses",
		ExtraTerms:  "a\nb\n\nc",
		ExtraText:   "first paragraph\ncontinues here\n\n  second  \n \n",
	}

	payload := fixedTransformer().Transform(req, "c", "p")

	clauses := payload.InitialRequest.CustomArguments
	require.NotNil(t, clauses)
	assert.Equal(t, []string{"a", "b", "c"}, clauses["data_usage_restrictions"])
	assert.Equal(t, []string{"first paragraph continues here", "second"}, clauses["additional_terms_and_conditions"])
	assert.Equal(t, clauses, payload.InitialOffer.CustomArguments)
}

func TestTransform_NoCustomClauses(t *testing.T) {
	payload := fixedTransformer().Transform(&models.ConsentRequest{ExtraTerms: "\n \n"}, "c", "p")
	assert.Nil(t, payload.InitialRequest.CustomArguments)
}

func TestTransform_NaturalLanguageDocument(t *testing.T) {
	req := &models.ConsentRequest{
		ExtraTerms: "terms",
		Notes:      "notes",
		Text:       "  ",
		ExtraText:  "text",
	}

	payload := fixedTransformer().Transform(req, "c", "p")
	assert.Equal(t, "terms\n\ntext\n\nnotes", payload.NaturalLanguageDocument)
	assert.Equal(t, payload.NaturalLanguageDocument, payload.InitialRequest.NaturalLanguageDocument)

	empty := fixedTransformer().Transform(&models.ConsentRequest{}, "c", "p")
	assert.Equal(t, "", empty.NaturalLanguageDocument)
}

func TestTransform_SynthesizesPolicy(t *testing.T) {
	req := &models.ConsentRequest{
		RequestName: "My Request! #1",
		Requester:   &models.Requester{RequesterID: "r1", RequesterName: "Research Lab"},
		Permissions: []models.Permission{
			{
				Dataset:               "http://example.org/ds/health",
				ActionRefinements:     []models.Refinement{{Attribute: "action", Value: "http://www.w3.org/ns/odrl/2/read_only"}},
				ConstraintRefinements: []models.Refinement{{Attribute: "region", Instance: "isAnyOf", Value: "EU"}},
			},
			{Dataset: "http://example.org/ds/other"},
		},
		SelectedOntologies: []models.OntologyRef{{ID: "default", Name: "DPV"}},
	}

	payload := fixedTransformer().Transform(req, "consumer", "provider")

	odrl := payload.InitialRequest.ODRLPolicy.ODRL
	assert.Equal(t, "http://upcast-project.eu/policy/my-request-1-1700000000000", odrl["uid"])
	assert.Equal(t, "http://www.w3.org/ns/odrl.jsonld", odrl["@context"])
	assert.Equal(t, "http://www.w3.org/ns/odrl/2/Policy", odrl["@type"])
	assert.Equal(t, []interface{}{}, odrl["prohibition"])

	permissions, ok := odrl["permission"].([]interface{})
	require.True(t, ok)
	require.Len(t, permissions, 2)

	first := permissions[0].(map[string]interface{})
	assert.Equal(t, "http://www.w3.org/ns/odrl/2/read_only", first["action"])
	assert.Equal(t, "http://example.org/ds/health", first["target"])
	assert.Equal(t, "r1", first["assignee"])
	assert.Equal(t, []interface{}{map[string]interface{}{
		"leftOperand":  "region",
		"operator":     "eq",
		"rightOperand": "EU",
	}}, first["constraint"])

	second := permissions[1].(map[string]interface{})
	assert.Equal(t, "http://www.w3.org/ns/odrl/2/use", second["action"])
	_, hasConstraint := second["constraint"]
	assert.False(t, hasConstraint)

	rdo := payload.ResourceDescriptionObject
	assert.Equal(t, "http://upcast-project.eu/resource/my-request-1", rdo.URI)
	assert.Equal(t, "EUR/Month", rdo.PriceUnit)
	assert.Equal(t, float64(0), rdo.Price)
	assert.Equal(t, "dataset, read only", rdo.TypeOfData)
	assert.Equal(t, []string{"DPV", "dataset", "read only"}, rdo.Tags)
	assert.Nil(t, rdo.GeographicScope)
	require.NotNil(t, rdo.Publisher)
	assert.Equal(t, "Research Lab", *rdo.Publisher)
}

func TestTransform_ExistingPermissionKeptUnchanged(t *testing.T) {
	existing := []interface{}{
		map[string]interface{}{"action": "read", "target": "ds:1"},
	}
	req := &models.ConsentRequest{
		RequestName: "Existing",
		Policy:      map[string]interface{}{"permission": existing, "uid": "urn:policy:1"},
		Permissions: []models.Permission{{Dataset: "legacy"}},
	}

	payload := fixedTransformer().Transform(req, "c", "p")

	odrl := payload.InitialRequest.ODRLPolicy.ODRL
	assert.Equal(t, existing, odrl["permission"])
	assert.Equal(t, "urn:policy:1", odrl["uid"])
	_, hasPrefixed := odrl["odrl:permission"]
	assert.False(t, hasPrefixed)
}

func TestTransform_UnwrapsNestedODRL(t *testing.T) {
	req := &models.ConsentRequest{
		RequestName: "Nested",
		Policy: map[string]interface{}{
			"odrl": map[string]interface{}{"uid": "urn:nested", "@type": "Offer"},
		},
		Permissions: []models.Permission{{Dataset: "ds:1"}},
	}

	payload := fixedTransformer().Transform(req, "c", "p")

	odrl := payload.InitialOffer.ODRLPolicy.ODRL
	assert.Equal(t, "urn:nested", odrl["uid"])
	assert.Equal(t, "Offer", odrl["@type"])
	permissions, ok := odrl["permission"].([]interface{})
	require.True(t, ok)
	assert.Len(t, permissions, 1)

	_, mutated := req.Policy["odrl"].(map[string]interface{})["permission"]
	assert.False(t, mutated)
}

func TestTransform_ODRLMetadata(t *testing.T) {
	req := &models.ConsentRequest{
		RequestName: "Geo",
		Policy: jsonMap(t, `{
			"@context": "http://www.w3.org/ns/odrl.jsonld",
			"odrl:permission": [{
				"odrl:action": {"@id": "http://www.w3.org/ns/odrl/2/data_analysis"},
				"odrl:target": "ds:1",
				"odrl:constraint": [
					{"odrl:leftOperand": "odrl:purpose", "odrl:operator": "odrl:eq", "odrl:rightOperand": "research"},
					{"odrl:leftOperand": "http://ex.org/terms#geographic_region", "odrl:operator": "odrl:isAnyOf", "odrl:rightOperand": ["EU", "UK"]}
				]
			}]
		}`),
	}

	payload := fixedTransformer().Transform(req, "c", "p")

	rdo := payload.ResourceDescriptionObject
	assert.Equal(t, "data analysis", rdo.TypeOfData)
	require.NotNil(t, rdo.GeographicScope)
	assert.Equal(t, "EU, UK", *rdo.GeographicScope)
	assert.Equal(t, []string{"data analysis"}, rdo.Tags)
	assert.Nil(t, rdo.Publisher)
}

func TestTransform_PayloadShape(t *testing.T) {
	req := &models.ConsentRequest{RequestName: "Shape"}
	payload := fixedTransformer().Transform(req, "consumer-1", "provider-1")

	assert.Equal(t, "pending", payload.NegotiationStatus)
	assert.Equal(t, "request", payload.InitialRequest.Type)
	assert.Equal(t, "offer", payload.InitialOffer.Type)
	assert.Equal(t, "consumer-1", payload.ConsumerID)
	assert.Equal(t, "provider-1", payload.InitialOffer.ProviderID)
	assert.Equal(t, []string{"consent-request"}, payload.ResourceDescriptionObject.Tags)

	body, err := json.Marshal(payload)
	require.NoError(t, err)
	decoded := jsonMap(t, string(body))
	for _, key := range []string{"initial_offer", "initial_request", "negotiation_status", "title", "consumer_id", "provider_id", "natural_language_document", "resource_description_object"} {
		assert.Contains(t, decoded, key)
	}
	rdo := decoded["resource_description_object"].(map[string]interface{})
	assert.Nil(t, rdo["geographic_scope"])
	assert.Nil(t, rdo["publisher"])
}

func TestTransform_NeverPanics(t *testing.T) {
	inputs := []*models.ConsentRequest{
		nil,
		{},
		{Policy: map[string]interface{}{"odrl": "not-an-object"}},
		{Policy: map[string]interface{}{"odrl:permission": "broken"}},
		{Policy: map[string]interface{}{"odrl:permission": []interface{}{42, nil, map[string]interface{}{"odrl:constraint": "x"}}}},
		{Permissions: []models.Permission{{ActionRefinements: []models.Refinement{{}}}}},
	}

	for _, in := range inputs {
		assert.NotPanics(t, func() {
			fixedTransformer().Transform(in, "", "")
		})
	}
}
