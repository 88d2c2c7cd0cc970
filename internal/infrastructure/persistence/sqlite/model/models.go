package model

// All lists every table managed by the ledger schema.
func All() []any {
	return []any{
		&Upload{},
		&ReportRow{},
		&MasterEntry{},
		&CacheEntry{},
	}
}
