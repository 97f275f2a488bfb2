package psylvestris

import (
	"math"

	"gonum.org/v1/gonum/integrate"

	"standsim/pkg/domain"
)

// Fang taper coefficients (Lizarralde 2008).
const (
	fangA0 = 0.000051
	fangA1 = 1.845867
	fangA2 = 1.045022
	fangB1 = 0.000011
	fangB2 = 0.000038
	fangB3 = 0.000030
	fangP1 = 0.093625
	fangP2 = 0.763750

	taperStep = 0.001

	// DefaultStumpHeight (m) is used by the wood use split when a tree has no
	// measured stump.
	DefaultStumpHeight = 0.2
)

// diameterWithBark returns the diameter over bark (cm) at relative height hr.
func diameterWithBark(tree *domain.Tree, hr float64) float64 {
	k := math.Pi / 40000
	ht := tree.Height
	alpha1 := math.Pow(1-fangP1, (fangB2-fangB1)*k/(fangB1*fangB2))
	alpha2 := math.Pow(1-fangP2, (fangB3-fangB2)*k/(fangB2*fangB3))

	var i1, i2 float64
	if fangP1 <= hr && hr <= fangP2 {
		i1 = 1
	}
	if fangP2 <= hr && hr <= 1 {
		i2 = 1
	}
	beta := math.Pow(fangB1, 1-(i1+i2)) * math.Pow(fangB2, i1) * math.Pow(fangB3, i2)
	r0 := 1.0
	r1 := math.Pow(1-fangP1, k/fangB1)
	r2 := math.Pow(1-fangP2, k/fangB2)
	c1 := math.Sqrt(fangA0 * math.Pow(tree.DBH, fangA1) * math.Pow(ht, fangA2-k/fangB1) /
		(fangB1*(r0-r1) + fangB2*(r1-alpha1*r2) + fangB3*alpha1*r2))

	return c1 * math.Sqrt(math.Pow(ht, (k-fangB1)/fangB1)*
		math.Pow(1-hr, (k-beta)/beta)*
		math.Pow(alpha1, i1+i2)*
		math.Pow(alpha2, i2))
}

// diameterWithoutBark returns the diameter under bark (cm) at relative height
// hr.
func diameterWithoutBark(tree *domain.Tree, hr float64) float64 {
	return (1 + 0.3485*math.Exp(-23.9191*hr)) * 0.7966 * tree.DBH * math.Pow(1-hr, 0.6094-0.7086*(1-hr))
}

// grid returns the points from, from+step, ... strictly below to.
func grid(from, to, step float64) []float64 {
	n := int(math.Ceil((to - from) / step))
	if n <= 0 {
		return nil
	}
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		x := from + float64(i)*step
		if x >= to {
			break
		}
		out = append(out, x)
	}
	return out
}

// sectionVolume integrates the squared radius (dm2) of diameter over hr and
// scales it to the tree height, giving dm3.
func sectionVolume(tree *domain.Tree, hr []float64, diameter func(*domain.Tree, float64) float64) float64 {
	if len(hr) < 3 {
		return 0
	}
	f := make([]float64, len(hr))
	for i, x := range hr {
		d := diameter(tree, x)
		f[i] = (d / 20) * (d / 20)
	}
	return math.Pi * tree.Height * 10 * integrate.Simpsons(hr, f)
}

func volume(tree *domain.Tree) {
	hr := grid(0, 1, taperStep)
	tree.Vol = sectionVolume(tree, hr, diameterWithBark)
	tree.BoleVol = sectionVolume(tree, hr, diameterWithoutBark)
	tree.BarkVol = tree.Vol - tree.BoleVol
	tree.VolHa = tree.Vol * tree.Expan / 1000
}

// woodUse is one merchantable class: logs of length metres with a top
// diameter between minD and maxD cm.
type woodUse struct {
	length float64
	minD   float64
	maxD   float64
	set    func(*domain.Tree, float64)
}

var woodUses = []woodUse{
	{3, 40, 160, func(t *domain.Tree, v float64) { t.Unwinding = v }},
	{3, 40, 160, func(t *domain.Tree, v float64) { t.Veneer = v }},
	{2.5, 40, 200, func(t *domain.Tree, v float64) { t.SawBig = v }},
	{2.5, 25, 200, func(t *domain.Tree, v float64) { t.SawSmall = v }},
	{2.5, 15, 28, func(t *domain.Tree, v float64) { t.SawCanter = v }},
	{6, 15, 28, func(t *domain.Tree, v float64) { t.Post = v }},
	{1.8, 6, 16, func(t *domain.Tree, v float64) { t.Stake = v }},
	{1, 5, 1000000, func(t *domain.Tree, v float64) { t.Chips = v }},
}

// merchantable splits the stem into logs for every wood use, each use scanned
// independently from the stump (dm3).
func merchantable(tree *domain.Tree) {
	ht := tree.Height
	stump := tree.StumpH
	if stump == 0 {
		stump = DefaultStumpHeight
	}
	for _, use := range woodUses {
		if ht <= 0 {
			use.set(tree, 0)
			continue
		}
		rel := use.length / ht
		hr := stump / ht
		if rel+hr > 1 {
			use.set(tree, 0)
			continue
		}
		var vol float64
		d := diameterWithBark(tree, hr)
		for d > use.maxD && hr+0.05/ht <= 1 {
			hr += 0.05 / ht
			d = diameterWithBark(tree, hr)
		}
		for d >= use.minD && hr+rel <= 1 {
			hr += rel
			d = diameterWithBark(tree, hr)
			if d >= use.minD && hr <= 1 {
				vol += sectionVolume(tree, grid(hr-rel, hr, taperStep), diameterWithBark)
			}
		}
		use.set(tree, vol)
	}
}
