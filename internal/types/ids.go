package types

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ID identifies a session, entity record, or resolution. IDs are minted
// here and only here; identifiers proposed by the completion service are
// never trusted.
type ID string

// NewID mints a random v4 ID.
func NewID() ID {
	return ID(uuid.NewString())
}

// ParseID validates caller-supplied text as an ID.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", NewError(VALIDATION_FAILED, fmt.Sprintf("%q is not a valid ID", s))
	}
	return ID(u.String()), nil
}

func (id ID) String() string { return string(id) }

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool { return id == "" }

// Validate rejects empty or malformed IDs.
func (id ID) Validate() error {
	if id.IsZero() {
		return NewError(VALIDATION_FAILED, "ID is empty")
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		return NewError(VALIDATION_FAILED, fmt.Sprintf("%q is not a valid ID", id))
	}
	return nil
}

// UnmarshalJSON validates IDs read back from snapshots. An empty string
// restores the zero ID.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*id = ""
		return nil
	}
	parsed, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
