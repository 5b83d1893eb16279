package assignment

// Score weighs proximity and workload equally. Distances beyond normalizeKm go negative.
func Score(distanceKm, normalizeKm float64, assigned, maxAssigned int) float64 {
	proximity := 1 - distanceKm/normalizeKm
	load := 1 - float64(assigned)/float64(maxAssigned+1)
	return 0.5*proximity + 0.5*load
}

// PickStaff returns the highest scoring candidate of one warehouse; ties keep the earlier one.
func PickStaff(cands []Candidate, distanceKm, normalizeKm float64) (Candidate, float64, bool) {
	if len(cands) == 0 {
		return Candidate{}, 0, false
	}
	maxAssigned := 0
	for _, c := range cands {
		if c.AssignedOrdersCount > maxAssigned {
			maxAssigned = c.AssignedOrdersCount
		}
	}
	best, bestScore := cands[0], Score(distanceKm, normalizeKm, cands[0].AssignedOrdersCount, maxAssigned)
	for _, c := range cands[1:] {
		if sc := Score(distanceKm, normalizeKm, c.AssignedOrdersCount, maxAssigned); sc > bestScore {
			best, bestScore = c, sc
		}
	}
	return best, bestScore, true
}
