// Package customer holds the billing-facing account within a tenant.
package customer

import "github.com/flexprice/flexprice/internal/types"

// Customer is a tenant-scoped billable account.
type Customer struct {
	ID                 string `db:"id" json:"id"`
	TenantID           string `db:"tenant_id" json:"tenant_id"`
	ExternalID         string `db:"external_id" json:"external_id"` // tenant-unique
	Name               string `db:"name" json:"name"`
	Currency           string `db:"currency" json:"currency"`
	Timezone           string `db:"timezone" json:"timezone"`
	InvoiceGracePeriod int    `db:"invoice_grace_period" json:"invoice_grace_period"` // days added to issue date
	NetPaymentTerm     int    `db:"net_payment_term" json:"net_payment_term"`          // days until due
	PaymentProvider    string `db:"payment_provider" json:"payment_provider,omitempty"`         // e.g. "stripe"; empty uses the registry fallback
	ProviderCustomerRef string `db:"provider_customer_ref" json:"provider_customer_ref,omitempty"` // provider-side customer id
	types.BaseModel
}
