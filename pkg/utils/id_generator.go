package utils

import (
	"github.com/google/uuid"
)

func prefixedID(prefix string) string {
	return prefix + "-" + uuid.New().String()
}

// GenerateRequestID generates a unique consent request ID
func GenerateRequestID() string {
	return prefixedID("REQ")
}

// GenerateOntologyID generates a unique ontology ID
func GenerateOntologyID() string {
	return prefixedID("ONT")
}

// GenerateUserID generates a unique owner or requester ID
func GenerateUserID() string {
	return prefixedID("USR")
}
