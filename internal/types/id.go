// README: Numeric identifiers shared by all tables (bigserial primary keys).
package types

import (
	"errors"
	"strconv"
)

var ErrInvalidID = errors.New("invalid id")

type ID int64

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrInvalidID
	}
	return ID(n), nil
}

// IDPtr returns nil for the zero ID so optional foreign keys round-trip as NULL.
func IDPtr(id ID) *ID {
	if id == 0 {
		return nil
	}
	return &id
}
