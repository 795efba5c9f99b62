package routing

// recompute is the single authority that derives a routing table from
// neighbor link costs and the latest vectors received from each neighbor
// (spec.md §4.1 "Recompute"). It is a pure function of its inputs so it
// can be unit tested without a State, and so State.recomputeLocked can
// install its result as one atomic table swap.
func recompute(self ServerID, neighbors map[ServerID]Cost, neighborVectors map[ServerID]Vector) map[ServerID]Route {
	t := make(map[ServerID]Route)
	t[self] = Route{HasNext: false, Cost: Zero}

	for n, cost := range neighbors {
		if !cost.IsInfinite() {
			t[n] = Route{NextHop: n, HasNext: true, Cost: cost}
		}
	}

	destinations := destinationUniverse(t, neighborVectors)

	for _, d := range destinations {
		if d == self {
			continue
		}

		bestNext, hasBest := t[d]
		bestCost := Infinity
		bestNextHop := ServerID(0)
		if hasBest {
			bestCost = bestNext.Cost
			bestNextHop = bestNext.NextHop
			hasBest = bestNext.HasNext
		}

		for n, linkCost := range neighbors {
			if linkCost.IsInfinite() {
				continue
			}
			v := neighborVectors[n]
			advertised, ok := v[d]
			if !ok {
				advertised = Infinity
			}

			// Poison-reverse filter (spec.md §4.1): if the neighbor
			// advertises zero cost to us, it believes it IS us, so any
			// path it advertises to a destination other than itself may
			// loop back through us.
			if selfAdvertised, ok := v[self]; ok && selfAdvertised.Equal(Zero) && d != n {
				continue
			}

			candidate := linkCost.Add(advertised)
			if candidate.Less(bestCost) {
				bestCost = candidate
				bestNextHop = n
				hasBest = true
			}
		}

		if !bestCost.IsInfinite() {
			t[d] = Route{NextHop: bestNextHop, HasNext: hasBest, Cost: bestCost}
		}
	}

	return t
}

// destinationUniverse returns every destination id mentioned by the
// initial table or by any neighbor's advertised vector, ascending by id
// (a deterministic tie-break, not a correctness requirement, per
// spec.md §4.1 step 4).
func destinationUniverse(t map[ServerID]Route, neighborVectors map[ServerID]Vector) []ServerID {
	seen := make(map[ServerID]struct{}, len(t))
	out := make([]ServerID, 0, len(t))
	for d := range t {
		seen[d] = struct{}{}
		out = append(out, d)
	}
	for _, v := range neighborVectors {
		for d := range v {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}

	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
