package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "lifeflow/pkg/domain-errors"
)

// IDs must be valid, non-empty, non-nil UUIDs.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseDonorID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseUnitID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseRequestID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, validUUID, id.UUID)
	})
}

func TestParseID_TrustBoundary(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE donors;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCampaignID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestIDJSONEncoding(t *testing.T) {
	id := NewDonorID()
	raw, err := json.Marshal(struct {
		ID DonorID `json:"id"`
	}{ID: id})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+id.String()+`"}`, string(raw))

	var decoded struct {
		ID DonorID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, id, decoded.ID)
}

func TestFormatDisplayID(t *testing.T) {
	day := time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "REQ2403090001", FormatDisplayID(RequestPrefix, day, 1))
	assert.Equal(t, "CAMP2403090042", FormatDisplayID(CampaignPrefix, day, 42))
	assert.Equal(t, "2403090007", FormatDisplayID(DonorPrefix, day, 7))
}

func TestParseBloodType(t *testing.T) {
	for _, bt := range BloodTypes() {
		parsed, err := ParseBloodType(string(bt))
		require.NoError(t, err)
		assert.Equal(t, bt, parsed)
	}
	_, err := ParseBloodType("C+")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestPage(t *testing.T) {
	p := Page{}.Normalize(10)
	assert.Equal(t, Page{Page: 1, Limit: 10}, p)

	start, end := Page{Page: 3, Limit: 10}.Window(25)
	assert.Equal(t, 20, start)
	assert.Equal(t, 25, end)

	start, end = Page{Page: 5, Limit: 10}.Window(25)
	assert.Equal(t, 25, start)
	assert.Equal(t, 25, end)

	assert.Equal(t, Pagination{Page: 1, Limit: 10, Total: 25, Pages: 3}, NewPagination(Page{Page: 1, Limit: 10}, 25))
}
