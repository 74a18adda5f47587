package utils

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"valid", "owner@example.com", false},
		{"plus addressing", "a+b@example.co.uk", false},
		{"empty", "", true},
		{"missing domain", "owner@", true},
		{"missing at", "owner.example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString("  a\x00bc\n"))
	assert.Equal(t, "", SanitizeString("   "))
}

func TestValidateExtension(t *testing.T) {
	allowed := []string{".ttl", ".owl", ".jsonld"}

	ext, err := ValidateExtension("dpv.TTL", allowed)
	require.NoError(t, err)
	assert.Equal(t, ".ttl", ext)

	ext, err = ValidateExtension("archive.tar.jsonld", allowed)
	require.NoError(t, err)
	assert.Equal(t, ".jsonld", ext)

	_, err = ValidateExtension("malware.exe", allowed)
	assert.Error(t, err)

	_, err = ValidateExtension("README", allowed)
	assert.Error(t, err)
}

func TestUniqueStrings(t *testing.T) {
	assert.Equal(t, []string{"o1", "o2"}, UniqueStrings([]string{" o1", "o2", "", "o1"}))
	assert.Equal(t, []string{}, UniqueStrings(nil))
}

func TestCorrelationIDContext(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "corr-1")
	assert.Equal(t, "corr-1", CorrelationIDFromContext(ctx))
	assert.Equal(t, "", CorrelationIDFromContext(context.Background()))
}

func TestTimeHelpers(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)

	assert.Equal(t, "2024-03-05T14:07:09Z", FormatTime(ts))
	assert.Equal(t, "March 5, 2024 at 2:07:09 PM UTC", FormatDisplayTime(ts))
	assert.Equal(t, int64(1709647629000), TimeToMillis(ts))
}

func TestGeneratedIDs(t *testing.T) {
	tests := []struct {
		prefix string
		gen    func() string
	}{
		{"REQ-", GenerateRequestID},
		{"ONT-", GenerateOntologyID},
		{"USR-", GenerateUserID},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			id := tt.gen()
			require.True(t, strings.HasPrefix(id, tt.prefix))
			_, err := uuid.Parse(strings.TrimPrefix(id, tt.prefix))
			assert.NoError(t, err)
			assert.NotEqual(t, id, tt.gen())
		})
	}
}
