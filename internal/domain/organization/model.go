// Package organization is the tenant root every other entity is scoped under.
package organization

import "github.com/flexprice/flexprice/internal/types"

// Organization is the tenant root. Every business entity carries its ID and
// every query must filter by it.
type Organization struct {
	ID            string `db:"id" json:"id"`
	Name          string `db:"name" json:"name"`
	InvoicePrefix string `db:"invoice_prefix" json:"invoice_prefix"`
	Timezone      string `db:"timezone" json:"timezone"`
	types.BaseModel
}
