package types

import "fmt"

const (
	DefaultFilterLimit  = 50
	DefaultFilterOffset = 0
	MaxFilterLimit      = 1000
)

// Filter is the common list/paging envelope accepted by every list operation.
type Filter struct {
	Limit   int      `form:"limit" json:"limit"`
	Offset  int      `form:"offset" json:"offset"`
	OrderBy string   `form:"order_by" json:"order_by"` // "field:direction"
	Status  Status   `form:"status" json:"status"`
}

// GetDefaultFilter returns a Filter with the default page size.
func GetDefaultFilter() Filter {
	return Filter{Limit: DefaultFilterLimit, Offset: DefaultFilterOffset, Status: StatusActive}
}

// OrderDirection is asc or desc.
type OrderDirection string

const (
	OrderAsc  OrderDirection = "asc"
	OrderDesc OrderDirection = "desc"
)

// ParseOrderBy validates "field:direction" against a per-entity whitelist and
// returns the resolved field/direction, or an error if the field isn't allowed.
// Dynamic order_by is never interpolated into SQL directly for this reason.
func ParseOrderBy(orderBy string, allowed map[string]bool, defaultField string) (field string, dir OrderDirection, err error) {
	if orderBy == "" {
		return defaultField, OrderDesc, nil
	}

	field, dir = defaultField, OrderDesc
	parts := splitOnce(orderBy, ':')
	field = parts[0]
	if len(parts) == 2 {
		switch OrderDirection(parts[1]) {
		case OrderAsc:
			dir = OrderAsc
		case OrderDesc:
			dir = OrderDesc
		default:
			return "", "", fmt.Errorf("invalid order direction %q", parts[1])
		}
	}

	if !allowed[field] {
		return "", "", fmt.Errorf("field %q is not sortable on this resource", field)
	}
	return field, dir, nil
}

func splitOnce(s string, sep byte) []string {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return []string{s[:i], s[i+1:]}
		}
	}
	return []string{s}
}

// ListResponse is the generic paginated envelope returned by list operations.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
