package core

import (
	"math"
	"sort"

	"standsim/pkg/domain"
	"standsim/pkg/pluginapi"
)

// DistributeIngrowth spreads area (m2/ha of new basal area) over the
// survivors. Each receiving survivor is replaced by a copy whose expan grows by
// its share, and an ingrowth record carrying only that share is returned
// alongside.
//
// With nil classes the share is area*10000/Σbasal_area over all survivors.
// Otherwise every survivor falls into the class containing its diameter (or
// the nearest one) and the class's own basal-area sum is the denominator. A
// zero denominator leaves the affected survivors unchanged.
func DistributeIngrowth(survivors []*domain.Tree, area float64, classes []pluginapi.DiameterClass) ([]*domain.Tree, []*domain.Tree) {
	if area <= 0 || len(survivors) == 0 {
		return survivors, nil
	}
	ordered := append([]*domain.Tree(nil), survivors...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].DBH < ordered[j].DBH })

	shares := make(map[*domain.Tree]float64, len(ordered))
	if classes == nil {
		var sumG float64
		for _, t := range ordered {
			sumG += t.BasalArea
		}
		if sumG == 0 {
			return survivors, nil
		}
		for _, t := range ordered {
			shares[t] = area * 10000 / sumG
		}
	} else {
		if len(classes) == 0 {
			return survivors, nil
		}
		member := make(map[*domain.Tree]int, len(ordered))
		sums := make([]float64, len(classes))
		for _, t := range ordered {
			idx := classIndex(classes, t.DBH)
			member[t] = idx
			sums[idx] += t.BasalArea
		}
		for _, t := range ordered {
			idx := member[t]
			if sums[idx] == 0 {
				continue
			}
			shares[t] = classes[idx].Area * 10000 / sums[idx]
		}
	}

	updated := make([]*domain.Tree, len(survivors))
	var added []*domain.Tree
	for i, t := range survivors {
		share, ok := shares[t]
		if !ok || share <= 0 {
			updated[i] = t
			continue
		}
		grown := t.Clone()
		grown.Expan += share
		updated[i] = grown

		ingrowth := t.Clone()
		ingrowth.Status = domain.StatusIngrowth
		ingrowth.Expan = share
		added = append(added, ingrowth)
	}
	return updated, added
}

// classIndex returns the class with Min <= dbh < Max, or the class whose
// bounds are nearest to dbh.
func classIndex(classes []pluginapi.DiameterClass, dbh float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range classes {
		if dbh >= c.Min && dbh < c.Max {
			return i
		}
		dist := c.Min - dbh
		if dbh >= c.Max {
			dist = dbh - c.Max
		}
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}
