package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "lifeflow/pkg/domain-errors"
)

// ID is a UUID tagged with the aggregate it identifies, so a DonorID can never
// be passed where a UnitID is expected. Text, JSON and SQL encoding are the
// embedded uuid.UUID's.
type ID[T any] struct {
	uuid.UUID
}

type (
	userTag     struct{}
	donorTag    struct{}
	unitTag     struct{}
	requestTag  struct{}
	campaignTag struct{}
	activityTag struct{}
)

type (
	UserID     = ID[userTag]
	DonorID    = ID[donorTag]
	UnitID     = ID[unitTag]
	RequestID  = ID[requestTag]
	CampaignID = ID[campaignTag]
	ActivityID = ID[activityTag]
)

// IsNil reports whether the ID is the zero UUID.
func (i ID[T]) IsNil() bool {
	return i.UUID == uuid.Nil
}

// NewID returns a fresh random ID.
func NewID[T any]() ID[T] {
	return ID[T]{UUID: uuid.New()}
}

// ParseID validates untrusted input at trust boundaries: IDs must be
// non-empty, well-formed and not the nil UUID.
func ParseID[T any](s string) (ID[T], error) {
	if strings.TrimSpace(s) == "" {
		return ID[T]{}, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	if len(s) > 45 {
		return ID[T]{}, dErrors.New(dErrors.CodeInvalidInput, "invalid id format")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return ID[T]{}, dErrors.New(dErrors.CodeInvalidInput, "invalid id format")
	}
	if u == uuid.Nil {
		return ID[T]{}, dErrors.New(dErrors.CodeInvalidInput, "id cannot be nil")
	}
	return ID[T]{UUID: u}, nil
}

func NewUserID() UserID         { return NewID[userTag]() }
func NewDonorID() DonorID       { return NewID[donorTag]() }
func NewUnitID() UnitID         { return NewID[unitTag]() }
func NewRequestID() RequestID   { return NewID[requestTag]() }
func NewCampaignID() CampaignID { return NewID[campaignTag]() }
func NewActivityID() ActivityID { return NewID[activityTag]() }

func ParseUserID(s string) (UserID, error)         { return ParseID[userTag](s) }
func ParseDonorID(s string) (DonorID, error)       { return ParseID[donorTag](s) }
func ParseUnitID(s string) (UnitID, error)         { return ParseID[unitTag](s) }
func ParseRequestID(s string) (RequestID, error)   { return ParseID[requestTag](s) }
func ParseCampaignID(s string) (CampaignID, error) { return ParseID[campaignTag](s) }

// FormatDisplayID renders the human-readable identifier
// <prefix><YYMMDD><4-digit sequence>. Sequences above 9999 widen naturally.
func FormatDisplayID(prefix string, day time.Time, seq int64) string {
	return fmt.Sprintf("%s%s%04d", prefix, day.UTC().Format("060102"), seq)
}

// Display id prefixes per aggregate.
const (
	DonorPrefix    = ""
	RequestPrefix  = "REQ"
	CampaignPrefix = "CAMP"
)
