package httpx

import (
	"bytes"
	"strconv"

	"merchcheck-backend/internal/apperr"
)

// ID accepts both 3 and "3" since the admin pages send form values as strings.
type ID uint

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || string(b) == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return apperr.Validation("Invalid id %q", string(b))
	}
	*id = ID(n)
	return nil
}
