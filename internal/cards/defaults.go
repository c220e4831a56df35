package cards

// DefaultCatalog returns the built-in starter set. The server falls back to
// it when no catalog file is configured; the demo and tests use it directly.
func DefaultCatalog() *Catalog {
	catalog, err := NewCatalog(defaultCards())
	if err != nil {
		// The starter set is fixed at compile time, so a validation failure
		// is a programming error.
		panic("invalid built-in card catalog: " + err.Error())
	}
	return catalog
}

func defaultCards() []Card {
	return []Card{
		// Work scope. Playing one commits the work to the project, growing
		// scope by its estimated cost.
		{ID: "W001", Name: "Pour Foundation", Type: "W", Description: "Sitework and foundation package.", Copies: 3, WorkCost: 200_000},
		{ID: "W002", Name: "Structural Steel", Type: "W", Description: "Erect the structural frame.", Copies: 2, WorkCost: 350_000},
		{ID: "W003", Name: "Curtain Wall", Type: "W", Description: "Enclose the building envelope.", Copies: 2, WorkCost: 275_000},
		{ID: "W004", Name: "Interior Fit-Out", Type: "W", Description: "Partitions, finishes and fixtures.", Copies: 3, WorkCost: 150_000},
		{ID: "W005", Name: "Mechanical Systems", Type: "W", Description: "HVAC, plumbing and electrical rough-in.", Copies: 2, WorkCost: 225_000},

		// Bank loans. Principal arrives as cash and accrues interest while
		// outstanding.
		{ID: "B001", Name: "Small Business Loan", Type: "B", Description: "Quick approval, modest principal.", Copies: 3, LoanAmount: 100_000, LoanRate: 5},
		{ID: "B002", Name: "Commercial Mortgage", Type: "B", Description: "Larger principal at a steeper rate.", Copies: 2, LoanAmount: 250_000, LoanRate: 7},

		// Investor funding.
		{ID: "I001", Name: "Angel Investor", Type: "I", Description: "A believer writes a check.", Copies: 2, Money: 150_000},
		{ID: "I002", Name: "Venture Round", Type: "I", Description: "Serious money, serious diligence.", Copies: 1, Money: 300_000, Time: 2},

		// Expeditors shave time off the project or bend the rules a little.
		{ID: "E001", Name: "Permit Expeditor", Type: "E", Description: "Walks your filings through the department.", Copies: 3, Time: -3},
		{ID: "E002", Name: "Overtime Crew", Type: "E", Description: "Pay the premium, make the schedule.", Copies: 2, Cost: 40_000, Time: -5},
		{ID: "E003", Name: "Favor Owed", Type: "E", Description: "Re-roll one die roll this turn.", Copies: 2, GrantReroll: true},
		{ID: "E004", Name: "Filing Clerk", Type: "E", Description: "Knows which forms actually matter.", Copies: 2, DrawSpec: "1 W"},

		// Life events. Several target other players or the whole table.
		{ID: "L001", Name: "City Inspection Blitz", Type: "L", Description: "Surprise inspections slow everyone down.", Copies: 2, Time: 2, Target: "All Players"},
		{ID: "L002", Name: "Labor Strike", Type: "L", Description: "Pick an opponent; their site goes quiet.", Copies: 2, SkipTurns: 1, Target: "Choose Opponent"},
		{ID: "L003", Name: "Market Rally", Type: "L", Description: "A rising market lifts every project.", Copies: 1, Money: 50_000, Target: "All Players"},
		{ID: "L004", Name: "Design Revision", Type: "L", Description: "The owner wants changes. The architect wants fees.", Copies: 2, PercentOfScope: 1},
		{ID: "L005", Name: "Good Press", Type: "L", Description: "Favorable coverage keeps money coming in.", Copies: 1, Money: 25_000, Duration: "Turns", DurationCount: 2},
		{ID: "L006", Name: "Lender Audit", Type: "L", Description: "1% fee for loans up to $1.4M, 2% up to $2.75M, 3% above.", Copies: 2, FeeDescription: "1% for loans up to $1.4M, 2% up to $2.75M, 3% above"},
		{ID: "L007", Name: "Paperwork Avalanche", Type: "L", Description: "Shed a card to dig out.", Copies: 2, DiscardSpec: "1 E"},
	}
}
