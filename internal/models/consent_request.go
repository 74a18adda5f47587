package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// RequestStatus is the stored status flag of a consent request
type RequestStatus string

const (
	RequestStatusDraft    RequestStatus = "draft"
	RequestStatusSent     RequestStatus = "sent"
	RequestStatusRejected RequestStatus = "rejected"
)

// Requester identifies the party that created a consent request
type Requester struct {
	RequesterID    string `json:"requesterId" bson:"requesterId"`
	RequesterName  string `json:"requesterName,omitempty" bson:"requesterName,omitempty"`
	RequesterEmail string `json:"requesterEmail,omitempty" bson:"requesterEmail,omitempty"`
}

// Refinement is a named, operator-qualified condition in the legacy permission shape
type Refinement struct {
	Attribute string `json:"attribute" bson:"attribute"`
	Instance  string `json:"instance" bson:"instance"`
	Value     string `json:"value" bson:"value"`
}

// Permission is the legacy (pre-ODRL) permission shape
type Permission struct {
	Dataset               string       `json:"dataset,omitempty" bson:"dataset,omitempty"`
	Action                string       `json:"action,omitempty" bson:"action,omitempty"`
	Purpose               string       `json:"purpose,omitempty" bson:"purpose,omitempty"`
	DatasetRefinements    []Refinement `json:"datasetRefinements,omitempty" bson:"datasetRefinements,omitempty"`
	ActionRefinements     []Refinement `json:"actionRefinements,omitempty" bson:"actionRefinements,omitempty"`
	PurposeRefinements    []Refinement `json:"purposeRefinements,omitempty" bson:"purposeRefinements,omitempty"`
	ConstraintRefinements []Refinement `json:"constraintRefinements,omitempty" bson:"constraintRefinements,omitempty"`
}

// OntologyRef references an ontology selected for a request
type OntologyRef struct {
	ID   string `json:"id" bson:"id"`
	Name string `json:"name" bson:"name"`
}

// ConsentRequest is the document stored for every consent request
type ConsentRequest struct {
	ID                 string                 `json:"id" bson:"_id"`
	RequestName        string                 `json:"requestName" bson:"requestName"`
	Requester          *Requester             `json:"requester,omitempty" bson:"requester,omitempty"`
	Permissions        []Permission           `json:"permissions" bson:"permissions"`
	Policy             map[string]interface{} `json:"policy,omitempty" bson:"policy,omitempty"`
	SelectedOntologies []OntologyRef          `json:"selectedOntologies" bson:"selectedOntologies"`
	Status             RequestStatus          `json:"status" bson:"status"`
	Owners             []string               `json:"owners" bson:"owners"`
	OwnersPending      []string               `json:"ownersPending" bson:"ownersPending"`
	OwnersAccepted     []string               `json:"ownersAccepted" bson:"ownersAccepted"`
	OwnersRejected     []string               `json:"ownersRejected" bson:"ownersRejected"`
	OwnerEmails        []string               `json:"ownerEmails,omitempty" bson:"ownerEmails,omitempty"`
	NegotiationID      string                 `json:"negotiationId,omitempty" bson:"negotiationId,omitempty"`
	NegotiationStatus  string                 `json:"negotiationStatus,omitempty" bson:"negotiationStatus,omitempty"`
	ContractID         string                 `json:"contractId,omitempty" bson:"contractId,omitempty"`
	CreatedAt          string                 `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	CreatedTime        int64                  `json:"createdTime,omitempty" bson:"createdTime"`
	SentAt             string                 `json:"sentAt,omitempty" bson:"sentAt,omitempty"`
	ExtraTerms         string                 `json:"extraTerms,omitempty" bson:"extraTerms,omitempty"`
	ExtraText          string                 `json:"extraText,omitempty" bson:"extraText,omitempty"`
	AdditionalInfo     string                 `json:"additionalInfo,omitempty" bson:"additionalInfo,omitempty"`
	Notes              string                 `json:"notes,omitempty" bson:"notes,omitempty"`
	Text               string                 `json:"text,omitempty" bson:"text,omitempty"`
}

// RequesterID returns the requester id or an empty string when no requester is set
func (r *ConsentRequest) RequesterID() string {
	if r == nil || r.Requester == nil {
		return ""
	}
	return r.Requester.RequesterID
}

// RequesterEmail returns the requester email or an empty string when no requester is set
func (r *ConsentRequest) RequesterEmail() string {
	if r == nil || r.Requester == nil {
		return ""
	}
	return r.Requester.RequesterEmail
}

// Normalize replaces nil slices with empty ones so documents always serialize arrays
func (r *ConsentRequest) Normalize() {
	if r.Permissions == nil {
		r.Permissions = []Permission{}
	}
	if r.SelectedOntologies == nil {
		r.SelectedOntologies = []OntologyRef{}
	}
	if r.Owners == nil {
		r.Owners = []string{}
	}
	if r.OwnersPending == nil {
		r.OwnersPending = []string{}
	}
	if r.OwnersAccepted == nil {
		r.OwnersAccepted = []string{}
	}
	if r.OwnersRejected == nil {
		r.OwnersRejected = []string{}
	}
}

// LifecycleStatus is the consolidated view of a request's state
type LifecycleStatus string

const (
	LifecycleDraft       LifecycleStatus = "draft"
	LifecycleSent        LifecycleStatus = "sent"
	LifecycleApproved    LifecycleStatus = "approved"
	LifecycleRejected    LifecycleStatus = "rejected"
	LifecycleNegotiating LifecycleStatus = "negotiating"
)

// DeriveLifecycle folds the stored status flag, owner sets and negotiation
// linkage into a single lifecycle value. The stored status is left untouched.
func DeriveLifecycle(r *ConsentRequest) LifecycleStatus {
	if r == nil {
		return LifecycleDraft
	}
	switch {
	case r.NegotiationID != "":
		return LifecycleNegotiating
	case r.Status == RequestStatusRejected:
		return LifecycleRejected
	case r.Status == RequestStatusDraft || r.Status == "":
		return LifecycleDraft
	case len(r.OwnersAccepted) > 0:
		return LifecycleApproved
	default:
		return LifecycleSent
	}
}

// RequestFilter holds the optional list filters for consent requests
type RequestFilter struct {
	UID    string
	Role   Role
	Status RequestStatus
}

// RequestCreateRequest is the body of POST /api/requests
type RequestCreateRequest struct {
	RequestName        string                 `json:"requestName"`
	Requester          *Requester             `json:"requester"`
	Permissions        []Permission           `json:"permissions"`
	Policy             map[string]interface{} `json:"policy"`
	SelectedOntologies []OntologyRef          `json:"selectedOntologies"`
	ExtraTerms         string                 `json:"extraTerms"`
	ExtraText          string                 `json:"extraText"`
	AdditionalInfo     string                 `json:"additionalInfo"`
	Notes              string                 `json:"notes"`
	Text               string                 `json:"text"`
}

// SendRequest is the body of POST /api/requests/:id/send
type SendRequest struct {
	OwnerIDs []string `json:"ownerIds" binding:"required,min=1"`
}

// OwnerDecision is an owner's answer to a sent request
type OwnerDecision string

const (
	DecisionAccept OwnerDecision = "accept"
	DecisionReject OwnerDecision = "reject"
)

// RespondRequest is the body of POST /api/requests/:id/respond
type RespondRequest struct {
	OwnerID  string        `json:"ownerId" binding:"required"`
	Decision OwnerDecision `json:"decision" binding:"required,oneof=accept reject"`
}

// RequestResponse is a consent request enriched with its derived lifecycle
type RequestResponse struct {
	ConsentRequest
	Lifecycle LifecycleStatus `json:"lifecycle"`
}

// NewRequestResponse wraps a request for API output
func NewRequestResponse(r *ConsentRequest) RequestResponse {
	return RequestResponse{ConsentRequest: *r, Lifecycle: DeriveLifecycle(r)}
}

// JSON holds a raw JSON document column
type JSON json.RawMessage

// Scan implements the sql.Scanner interface for JSON
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type for JSON: %T", value)
	}

	if !json.Valid(bytes) {
		return fmt.Errorf("invalid JSON data")
	}

	*j = JSON(append([]byte(nil), bytes...))
	return nil
}

// Value implements the driver.Valuer interface for JSON
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}
