package core

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"standsim/pkg/domain"
	"standsim/pkg/pluginapi"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func newTree(plotID, id int, expan, dbh, height float64) *domain.Tree {
	t := domain.NewTree(plotID, id)
	t.Expan = expan
	t.DBH = dbh
	t.Height = height
	t.BasalArea = math.Pi * dbh * dbh / 4
	t.Vol = dbh * height * 0.4
	return t
}

func newPlot(t *testing.T, id int, age float64, trees ...*domain.Tree) *domain.Plot {
	t.Helper()
	p := domain.NewPlot(id)
	p.Age = age
	for _, tree := range trees {
		if err := p.AddTree(tree); err != nil {
			t.Fatalf("add tree: %v", err)
		}
	}
	return p.Recalculate()
}

func newInventory(plots ...*domain.Plot) *domain.Inventory {
	inv := domain.NewInventory(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	for _, p := range plots {
		inv.AddPlot(p, true)
	}
	return inv
}

func aliveExpan(p *domain.Plot) float64 { return sumExpan(p.Trees()) }

var errModel = errors.New("model failure")

// growthModel survives a fixed share of every tree, adds a fixed diameter
// increment and optionally asks for ingrowth.
type growthModel struct {
	survival    float64
	increment   float64
	ingrowth    float64
	classes     []pluginapi.DiameterClass
	failSurvive map[int]bool
	failDistrib bool
	failInit    bool
}

func (m growthModel) Initialize(plot *domain.Plot) error {
	if m.failInit {
		return errModel
	}
	for _, t := range plot.Trees() {
		if t.Height == 0 {
			t.Height = 1.3 + t.DBH/2
		}
	}
	return nil
}

func (m growthModel) Survives(_ int, _ *domain.Plot, tree *domain.Tree) (float64, error) {
	if m.failSurvive[tree.TreeID] {
		return 0, errModel
	}
	return m.survival, nil
}

func (m growthModel) Grow(_ int, _ *domain.Plot, prev, next *domain.Tree) error {
	next.DBH = prev.DBH + m.increment
	next.BasalArea = math.Pi * next.DBH * next.DBH / 4
	return nil
}

func (m growthModel) AddTree(int, *domain.Plot) (float64, error) { return m.ingrowth, nil }

func (m growthModel) NewTreeDistribution(int, *domain.Plot, float64) ([]pluginapi.DiameterClass, error) {
	if m.failDistrib {
		return nil, errModel
	}
	return m.classes, nil
}

func (m growthModel) ProcessPlot(_ int, _ *domain.Plot, trees []*domain.Tree) error {
	for _, t := range trees {
		t.Vol = t.DBH * t.Height * 0.4
	}
	return nil
}

// densityModel is a stand model shrinking density by a fixed share.
type densityModel struct {
	mortality float64
	fail      bool
}

func (densityModel) Initialize(plot *domain.Plot) error {
	plot.Density = 1000
	return nil
}

func (m densityModel) ApplyGrowModel(prev, next *domain.Plot, _ int) error {
	if m.fail {
		return errModel
	}
	next.Density = prev.Density * (1 - m.mortality)
	return nil
}

func (m densityModel) ApplyCutDownModel(prev, next *domain.Plot, _ pluginapi.CutMethod, quantity float64, _ int, _ domain.AgeGate) error {
	next.Density = prev.Density * (1 - quantity/100)
	return nil
}

type failingHarvest struct{}

func (failingHarvest) Name() string { return "failing" }

func (failingHarvest) Apply(*domain.Plot, int, float64) (*domain.Plot, error) {
	return nil, errModel
}

type logRecord struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu      sync.Mutex
	records []logRecord
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, logRecord{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.records {
		if r.level == level && r.msg == msg {
			n++
		}
	}
	return n
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}
