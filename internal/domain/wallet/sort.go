package wallet

import "sort"

// SortForDraw orders wallets for prepaid-credit draw-down: priority
// ascending, then created_at ascending (spec's ordering-guarantees section;
// the invoice-assembler section additionally mentions breaking ties by
// descending balance, but the cross-cutting ordering section is treated as
// authoritative here since it governs multiple draw sites consistently).
func SortForDraw(wallets []*Wallet) {
	sort.SliceStable(wallets, func(i, j int) bool {
		if wallets[i].Priority != wallets[j].Priority {
			return wallets[i].Priority < wallets[j].Priority
		}
		return wallets[i].CreatedAt.Before(wallets[j].CreatedAt)
	})
}
