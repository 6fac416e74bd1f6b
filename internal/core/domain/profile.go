package domain

// BudgetRange is a nightly price window in USD
type BudgetRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// UserProfile holds stored traveller preferences used to synthesize a query
type UserProfile struct {
	Interests             []string        `json:"interests"`
	HostelPreferences     map[string]bool `json:"hostelPreferences"`
	PreferredDestinations []string        `json:"preferredDestinations"`
	BudgetRange           *BudgetRange    `json:"budgetRange,omitempty"`
}
