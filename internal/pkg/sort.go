package pkg

import (
	"strings"

	"github.com/pagevault/pagevault/internal/domain"
)

// ParseUserSort resolves the sort query parameter of the user listing into a
// database column and direction. A leading '-' marks descending order.
// The empty string means no explicit sort and resolves to ascending username,
// which keeps the listing stable across requests.
func ParseUserSort(param string) (column string, desc bool, err error) {
	if param == "" {
		return "username", false, nil
	}

	key := param
	if strings.HasPrefix(key, "-") {
		desc = true
		key = key[1:]
	}

	column, ok := domain.UserSortKeys[key]
	if !ok {
		return "", false, domain.NewAppError(domain.CodeValidation, "invalid sort key: "+key, nil)
	}
	return column, desc, nil
}
