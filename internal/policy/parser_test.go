package policy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upcast-project/upconsent/internal/models"
)

func decodePolicy(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

const marketingPolicy = `{
	"@context": "http://www.w3.org/ns/odrl.jsonld",
	"@type": "Policy",
	"odrl:permission": [
		{
			"odrl:action": {"@id": "http://www.w3.org/ns/odrl/2/use"},
			"odrl:target": "http://example.org/datasets#customer_records",
			"odrl:assignee": {
				"@id": "http://example.org/parties/acmeCorp",
				"odrl:refinement": [
					{"odrl:leftOperand": "odrl:industry", "odrl:operator": "odrl:eq", "odrl:rightOperand": "retail"}
				]
			},
			"odrl:constraint": [
				{
					"odrl:leftOperand": "odrl:purpose",
					"odrl:operator": "odrl:isAnyOf",
					"odrl:rightOperand": [{"@id": "http://example.org/purpose/directMarketing"}, "research"]
				},
				{
					"odrl:leftOperand": "http://example.org/ns#spatial",
					"odrl:operator": {"@id": "odrl:eq"},
					"odrl:rightOperand": {"@value": "EU", "@type": "xsd:string"}
				}
			]
		}
	]
}`

func TestHasODRLPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy string
		want   bool
	}{
		{"context and permission array", `{"@context": "x", "odrl:permission": []}`, true},
		{"missing context", `{"odrl:permission": [{}]}`, false},
		{"null context", `{"@context": null, "odrl:permission": [{}]}`, false},
		{"missing odrl permission", `{"@context": "x", "permission": [{}], "odrl:prohibition": []}`, false},
		{"permission is not an array", `{"@context": "x", "odrl:permission": {"odrl:action": "use"}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &models.ConsentRequest{Policy: decodePolicy(t, tt.policy)}
			assert.Equal(t, tt.want, HasODRLPolicy(req))
		})
	}

	t.Run("no policy", func(t *testing.T) {
		assert.False(t, HasODRLPolicy(&models.ConsentRequest{}))
		assert.False(t, HasODRLPolicy(nil))
	})
}

func TestGetPermissions_ODRL(t *testing.T) {
	req := &models.ConsentRequest{Policy: decodePolicy(t, marketingPolicy)}

	perms := GetPermissions(req)
	require.Len(t, perms, 1)
	p := perms[0]

	assert.Equal(t, "Use", p.Action)
	assert.Equal(t, "Customer Records", p.Dataset)
	assert.Equal(t, "Direct Marketing, research", p.Purpose)

	require.Len(t, p.Constraints, 2)
	assert.Equal(t, "Purpose", p.Constraints[0].LeftOperand)
	assert.Equal(t, "Is Any Of", p.Constraints[0].Operator)
	assert.Equal(t, []string{"Direct Marketing", "research"}, p.Constraints[0].Values)
	assert.Equal(t, "Purpose Is Any Of Direct Marketing, research", p.Constraints[0].Description)
	assert.Equal(t, "Spatial Eq EU", p.Constraints[1].Description)

	require.Len(t, p.Assignees, 1)
	assert.Equal(t, "http://example.org/parties/acmeCorp", p.Assignees[0].ID)
	assert.Equal(t, "Acme Corp", p.Assignees[0].Name)
	require.NotNil(t, p.Assignees[0].Refinement)
	assert.Equal(t, "Industry Eq retail", p.Assignees[0].Refinement.Description)

	assert.Empty(t, p.ActionRefinements)
	assert.NotNil(t, p.ActionRefinements)
}

func TestGetPermissions_PurposeFallback(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
	}{
		{"no constraints", `[]`},
		{"purpose without any operator", `[{"odrl:leftOperand": "odrl:purpose", "odrl:operator": "odrl:eq", "odrl:rightOperand": "x"}]`},
		{"any operator on other operand", `[{"odrl:leftOperand": "odrl:spatial", "odrl:operator": "odrl:isAnyOf", "odrl:rightOperand": ["EU"]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"@context": "c", "odrl:permission": [{"odrl:action": "odrl:read", "odrl:constraint": ` + tt.constraint + `}]}`
			perms := GetPermissions(&models.ConsentRequest{Policy: decodePolicy(t, raw)})
			require.Len(t, perms, 1)
			assert.Equal(t, "General use", perms[0].Purpose)
			assert.Equal(t, "Read", perms[0].Action)
		})
	}
}

func TestGetPermissions_ListRightOperand(t *testing.T) {
	raw := `{"@context": "c", "odrl:permission": [{
		"odrl:action": "use",
		"odrl:constraint": {"odrl:leftOperand": "purpose", "odrl:operator": "isAnyOf",
			"odrl:rightOperand": {"@list": [{"@value": "Teaching"}, {"@id": "ex:academic_research"}]}}
	}]}`

	perms := GetPermissions(&models.ConsentRequest{Policy: decodePolicy(t, raw)})
	require.Len(t, perms, 1)
	assert.Equal(t, "Teaching, Academic Research", perms[0].Purpose)
}

func TestGetPermissions_MalformedConstraintsDoNotPanic(t *testing.T) {
	raw := `{"@context": "c", "odrl:permission": [
		{"odrl:constraint": [42, "text", null, {"odrl:rightOperand": {"nested": {"deep": true}}}]},
		"not-an-object",
		{"odrl:assignee": [7, {"odrl:refinement": "bad"}]}
	]}`

	var perms []ParsedPermission
	assert.NotPanics(t, func() {
		perms = GetPermissions(&models.ConsentRequest{Policy: decodePolicy(t, raw)})
	})
	require.Len(t, perms, 2)
	assert.Equal(t, "Unknown", perms[0].Action)
	assert.Equal(t, "Unknown", perms[0].Dataset)
	require.Len(t, perms[0].Constraints, 1)
	assert.Equal(t, "Unknown Unknown", perms[0].Constraints[0].Description)
}

func TestGetPermissions_Legacy(t *testing.T) {
	refinements := []models.Refinement{{Attribute: "age", Instance: "gt", Value: "18"}}
	req := &models.ConsentRequest{
		Permissions: []models.Permission{
			{
				Dataset:               "http://example.org/ds/1",
				Action:                "read",
				DatasetRefinements:    refinements,
				ConstraintRefinements: []models.Refinement{{Attribute: "region", Instance: "eq", Value: "EU"}},
			},
			{},
		},
	}

	perms := GetPermissions(req)
	require.Len(t, perms, 2)

	assert.Equal(t, "http://example.org/ds/1", perms[0].Dataset)
	assert.Equal(t, "read", perms[0].Action)
	assert.Equal(t, "Unknown purpose", perms[0].Purpose)
	assert.Equal(t, refinements, perms[0].DatasetRefinements)
	assert.Equal(t, req.Permissions[0].ConstraintRefinements, perms[0].ConstraintRefinements)
	assert.Equal(t, []models.Refinement{}, perms[0].ActionRefinements)
	assert.Equal(t, []models.Refinement{}, perms[0].PurposeRefinements)

	assert.Equal(t, "Unknown dataset", perms[1].Dataset)
	assert.Equal(t, "Unknown action", perms[1].Action)
	assert.Equal(t, []models.Refinement{}, perms[1].DatasetRefinements)
}

func TestGetPermissions_ODRLSupersedesLegacy(t *testing.T) {
	req := &models.ConsentRequest{
		Policy:      decodePolicy(t, marketingPolicy),
		Permissions: []models.Permission{{Dataset: "legacy"}},
	}
	perms := GetPermissions(req)
	require.Len(t, perms, 1)
	assert.Equal(t, "Customer Records", perms[0].Dataset)
}

func TestGetPermissions_NoShape(t *testing.T) {
	assert.Equal(t, []ParsedPermission{}, GetPermissions(&models.ConsentRequest{}))
	assert.Equal(t, []ParsedPermission{}, GetPermissions(&models.ConsentRequest{
		Policy: map[string]interface{}{"permission": []interface{}{}},
	}))
}

func TestResolveSource(t *testing.T) {
	assert.Equal(t, SourceNone, ResolveSource(nil).Kind)
	assert.Equal(t, SourceLegacy, ResolveSource(&models.ConsentRequest{Permissions: []models.Permission{{}}}).Kind)

	src := ResolveSource(&models.ConsentRequest{Policy: decodePolicy(t, marketingPolicy)})
	assert.Equal(t, SourceODRL, src.Kind)
	assert.Len(t, src.ODRL.Permissions, 1)
}
