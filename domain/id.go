package domain

import (
	"bytes"
	"strconv"
)

// ID is an entity identity as issued by the planning API. The API is not
// consistent about its type, so both JSON strings and numbers decode into it.
type ID string

func (id ID) String() string { return string(id) }

// UnmarshalJSON accepts "abc", 42 and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return err
	}
	*id = ID(data)
	return nil
}

// ResolveID returns the first non-empty identity. Callers pass candidates in
// priority order: the record's own "id", then "_id", then the
// feature-specific reference key (guestId, categoryId, ...).
func ResolveID(candidates ...ID) ID {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}
