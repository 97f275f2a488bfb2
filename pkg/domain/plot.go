package domain

import (
	"fmt"
	"math"
	"sort"
)

// DefaultReinekeExponent is the generic stand density index exponent.
const DefaultReinekeExponent = -1.605

// DominantSampleSize is the expan weight (trees per hectare) of the dominant
// sample used for dominant height, diameter and section.
const DominantSampleSize = 100.0

// Plot is a stand record. Its aggregate fields are derived from the alive
// trees and only change when Recalculate runs or a stand model writes them.
type Plot struct {
	InventoryID int
	ID          int

	Type         string
	Area         float64
	Province     string
	StudyArea    string
	Municipality string
	Forest       string
	MainSpecie   string
	SpecieIFNID  float64

	Slope          float64
	Aspect         float64
	Continentality float64
	Longitude      float64
	Latitude       float64
	Altitude       float64

	Expan           float64
	Age             float64
	Density         float64
	BasalArea       float64
	BAMax           float64
	BAMin           float64
	MeanBA          float64
	DBHMax          float64
	DBHMin          float64
	MeanDBH         float64
	QMDBH           float64
	DominantDBH     float64
	HMax            float64
	HMin            float64
	MeanH           float64
	DominantH       float64
	DominantSection float64
	CrownMeanD      float64
	CrownDomD       float64
	CanopyCover     float64
	Reineke         float64
	Hart            float64
	SI              float64
	QI              float64
	Vol             float64
	BoleVol         float64
	BarkVol         float64

	WSW     float64
	WSB     float64
	WCork   float64
	WThickB float64
	WSTB    float64
	WB27    float64
	WB2T    float64
	WThinB  float64
	WB05    float64
	WL      float64
	WTBL    float64
	WBL07   float64
	WR      float64
	WT      float64

	Unwinding float64
	Veneer    float64
	SawBig    float64
	SawSmall  float64
	SawCanter float64
	Post      float64
	Stake     float64
	Chips     float64

	// ReinekeExponent overrides DefaultReinekeExponent when non-zero.
	ReinekeExponent float64

	trees TreeSet
	dead  TreeSet
	cut   TreeSet
	added TreeSet
}

// NewPlot returns an empty plot with the given identity.
func NewPlot(id int) *Plot {
	return &Plot{
		ID:    id,
		trees: newTreeSet(),
		dead:  newTreeSet(),
		cut:   newTreeSet(),
		added: newTreeSet(),
	}
}

// AddTree routes the tree into the collection matching its status.
func (p *Plot) AddTree(tree *Tree) error {
	if tree == nil {
		return fmt.Errorf("plot %d: nil tree", p.ID)
	}
	switch tree.Status {
	case StatusAlive:
		p.trees.Put(tree)
	case StatusDead:
		p.dead.Put(tree)
	case StatusCut:
		p.cut.Put(tree)
	case StatusIngrowth:
		p.added.Put(tree)
	default:
		return fmt.Errorf("plot %d: tree %d has invalid status %q", p.ID, tree.TreeID, tree.Status)
	}
	return nil
}

// Tree returns an alive tree by id.
func (p *Plot) Tree(id int) (*Tree, bool) { return p.trees.Get(id) }

// Trees returns the alive trees in insertion order.
func (p *Plot) Trees() []*Tree { return p.trees.List() }

// DeadTrees returns the dead fragments produced by the last growth step.
func (p *Plot) DeadTrees() []*Tree { return p.dead.List() }

// CutTrees returns the harvested fragments produced by the last harvest.
func (p *Plot) CutTrees() []*Tree { return p.cut.List() }

// IngrowthTrees returns the ingrowth records added by the last growth step.
func (p *Plot) IngrowthTrees() []*Tree { return p.added.List() }

// AllTrees returns alive, dead, cut and ingrowth records in that order.
func (p *Plot) AllTrees() []*Tree {
	out := make([]*Tree, 0, p.trees.Len()+p.dead.Len()+p.cut.Len()+p.added.Len())
	out = append(out, p.trees.List()...)
	out = append(out, p.dead.List()...)
	out = append(out, p.cut.List()...)
	out = append(out, p.added.List()...)
	return out
}

// Clone copies every plot field. When full is set the alive trees are deep
// copied as well; dead, cut and ingrowth records never carry over.
func (p *Plot) Clone(full bool) *Plot {
	cp := *p
	cp.trees = newTreeSet()
	cp.dead = newTreeSet()
	cp.cut = newTreeSet()
	cp.added = newTreeSet()
	if full {
		cp.trees = p.trees.clone()
	}
	return &cp
}

// WeightedTree pairs a tree with the expan weight it contributes to a sample.
type WeightedTree struct {
	Tree   *Tree
	Weight float64
}

// DominantSelection walks trees by diameter descending and accumulates expan
// until DominantSampleSize is reached. The tree crossing the boundary only
// contributes the remaining weight.
func DominantSelection(trees []*Tree) []WeightedTree {
	ordered := make([]*Tree, len(trees))
	copy(ordered, trees)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].DBH > ordered[j].DBH })

	var (
		acc float64
		out []WeightedTree
	)
	for _, t := range ordered {
		if acc >= DominantSampleSize {
			break
		}
		w := t.Expan
		if acc+w > DominantSampleSize {
			w = DominantSampleSize - acc
		}
		if w <= 0 {
			continue
		}
		acc += w
		out = append(out, WeightedTree{Tree: t, Weight: w})
	}
	return out
}

// DominantMean averages value over a dominant selection. The sum is always
// divided by DominantSampleSize, also when the stand holds fewer trees.
func DominantMean(selection []WeightedTree, value func(*Tree) float64) float64 {
	var sum float64
	for _, wt := range selection {
		sum += value(wt.Tree) * wt.Weight
	}
	return sum / DominantSampleSize
}

func (p *Plot) reinekeExponent() float64 {
	if p.ReinekeExponent != 0 {
		return p.ReinekeExponent
	}
	return DefaultReinekeExponent
}

// Recalculate recomputes the stand aggregates from the alive trees. Means are
// skipped when the expan sum is zero, leaving the previous values in place.
func (p *Plot) Recalculate() *Plot {
	alive := p.trees.List()
	selection := DominantSelection(alive)

	var (
		sumExpan, sumBA, sumDBH, sumDBH2, sumH, sumBAWeighted float64
		sumLCW, sumLCW2, sumCanopy, sumVol, sumBoleVol        float64
	)
	dbhMin, dbhMax := 9999.0, 0.0
	hMin, hMax := 9999.0, 0.0
	baMin, baMax := 9999.0, 0.0

	for _, t := range alive {
		e := t.Expan
		sumExpan += e
		sumBA += t.BasalArea * e
		sumBAWeighted += t.BasalArea * e
		sumDBH += t.DBH * e
		sumDBH2 += t.DBH * t.DBH * e
		sumH += t.Height * e
		sumLCW += t.LCW * e
		sumLCW2 += t.LCW * t.LCW * e
		sumCanopy += math.Pi * t.LCW * t.LCW / 4 * e
		sumVol += t.Vol * e
		sumBoleVol += t.BoleVol * e

		dbhMin, dbhMax = math.Min(dbhMin, t.DBH), math.Max(dbhMax, t.DBH)
		hMin, hMax = math.Min(hMin, t.Height), math.Max(hMax, t.Height)
		baMin, baMax = math.Min(baMin, t.BasalArea), math.Max(baMax, t.BasalArea)
	}
	if len(alive) == 0 {
		dbhMin, hMin, baMin = 0, 0, 0
	}

	p.BasalArea = sumBA / 10000
	p.Density = sumExpan
	p.DominantH = DominantMean(selection, func(t *Tree) float64 { return t.Height })
	p.DominantDBH = DominantMean(selection, func(t *Tree) float64 { return t.DBH })
	p.DominantSection = DominantMean(selection, func(t *Tree) float64 { return t.BasalArea })
	p.DBHMin, p.DBHMax = dbhMin, dbhMax
	p.HMin, p.HMax = hMin, hMax
	p.BAMin, p.BAMax = baMin, baMax

	if sumExpan != 0 {
		p.MeanDBH = sumDBH / sumExpan
		p.QMDBH = math.Sqrt(sumDBH2 / sumExpan)
		p.MeanH = sumH / sumExpan
		p.MeanBA = sumBAWeighted / sumExpan
		p.CrownMeanD = sumLCW / sumExpan
		p.CrownDomD = math.Sqrt(sumLCW2 / sumExpan)
	}

	if p.QMDBH != 0 {
		p.Reineke = sumExpan * math.Pow(25/p.QMDBH, p.reinekeExponent())
	} else {
		p.Reineke = 0
	}
	if sumExpan != 0 && p.DominantH != 0 {
		p.Hart = 10000 / (p.DominantH * math.Sqrt(sumExpan))
	}

	p.CanopyCover = sumCanopy / 10000
	p.Vol = sumVol / 1000
	p.BoleVol = sumBoleVol / 1000
	if p.Vol > p.BoleVol {
		p.BarkVol = p.Vol - p.BoleVol
	}
	return p
}

// String renders the plot identity for log lines.
func (p *Plot) String() string {
	return fmt.Sprintf("plot %d age=%g trees=%d", p.ID, p.Age, p.trees.Len())
}
