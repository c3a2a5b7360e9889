package extraction

// aggregate merges per-target results into one result set. Success is
// the AND across all results; the message summarizes failure without
// enumerating (callers inspect individual results). Totals sum only the
// results that report the respective field, so a set where nothing
// reported a field has a nil total, not zero.
func aggregate(results map[string]Result) *ResultSet {
	set := &ResultSet{
		Results: results,
		Success: true,
	}

	for _, r := range results {
		if !r.Success {
			set.Success = false
		}
		set.TotalInputTokens = addInt(set.TotalInputTokens, r.InputTokens)
		set.TotalOutputTokens = addInt(set.TotalOutputTokens, r.OutputTokens)
		set.TotalCost = addFloat(set.TotalCost, r.Cost)
	}

	if !set.Success {
		set.Message = "some extractions failed; inspect individual results"
	}
	return set
}

func addInt(total, v *int) *int {
	if v == nil {
		return total
	}
	if total == nil {
		n := *v
		return &n
	}
	n := *total + *v
	return &n
}

func addFloat(total, v *float64) *float64 {
	if v == nil {
		return total
	}
	if total == nil {
		n := *v
		return &n
	}
	n := *total + *v
	return &n
}
