package ledger

// SeedBalance is a test helper that sets a wallet balance directly when using
// the in-memory store.
func SeedBalance(s Store, walletID string, amount int64) {
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.Lock()
		mw, exists := mem.wallets[walletID]
		mem.mu.Unlock()
		if !exists {
			return
		}
		mw.mu.Lock()
		mw.w.Balance = amount
		mw.mu.Unlock()
	}
}

// TotalBalance is a test helper that sums every wallet balance in the
// in-memory store, used to assert value conservation.
func TotalBalance(s Store) int64 {
	mem, ok := s.(*memoryStore)
	if !ok {
		return 0
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	var total int64
	for _, mw := range mem.wallets {
		mw.mu.Lock()
		total += mw.w.Balance
		mw.mu.Unlock()
	}
	return total
}
