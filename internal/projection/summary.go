package projection

// Summary is the headline view of a Result at a chosen year.
type Summary struct {
	TargetYear    int     `json:"targetYear"`
	Balance       float64 `json:"balance"`
	Profitable    bool    `json:"profitable"`
	BreakEvenYear *int    `json:"breakEvenYear,omitempty"`
	Horizon       int     `json:"horizon"`
	FinalBalance  float64 `json:"finalBalance"`
}

// Summary extracts the balance at targetYear together with the break-even
// year. targetYear must lie within the computed horizon.
func (r *Result) Summary(targetYear int) (Summary, error) {
	balance, err := r.BalanceAt(targetYear)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{
		TargetYear:   targetYear,
		Balance:      balance,
		Profitable:   balance > 0,
		Horizon:      r.Horizon(),
		FinalBalance: r.FinalBalance(),
	}
	if year, ok := r.BreakEvenYear(); ok {
		s.BreakEvenYear = &year
	}
	return s, nil
}
