package domain

import (
	"context"
	"time"
)

// PlotSnapshot is the persisted summary of one plot at the end of a step.
type PlotSnapshot struct {
	PlotID    int     `json:"plot_id"`
	Age       float64 `json:"age"`
	Density   float64 `json:"density"`
	BasalArea float64 `json:"basal_area"`
	DominantH float64 `json:"dominant_h"`
	QMDBH     float64 `json:"qm_dbh"`
	Vol       float64 `json:"vol"`
	Printable bool    `json:"printable"`
	Alive     int     `json:"alive"`
	Dead      int     `json:"dead"`
	Cut       int     `json:"cut"`
	Ingrowth  int     `json:"ingrowth"`
}

// SnapshotPlot summarises a plot for the run history.
func SnapshotPlot(p *Plot, printable bool) PlotSnapshot {
	return PlotSnapshot{
		PlotID:    p.ID,
		Age:       p.Age,
		Density:   p.Density,
		BasalArea: p.BasalArea,
		DominantH: p.DominantH,
		QMDBH:     p.QMDBH,
		Vol:       p.Vol,
		Printable: printable,
		Alive:     p.trees.Len(),
		Dead:      p.dead.Len(),
		Cut:       p.cut.Len(),
		Ingrowth:  p.added.Len(),
	}
}

// StepRecord is the persisted form of one simulation step.
type StepRecord struct {
	ID          int            `json:"id"`
	Operation   string         `json:"operation"`
	Description string         `json:"description,omitempty"`
	Age         float64        `json:"age"`
	Years       float64        `json:"years"`
	Plots       []PlotSnapshot `json:"plots"`
}

// RunRecord is one completed simulation run.
type RunRecord struct {
	ID         string       `json:"id"`
	Scenario   string       `json:"scenario"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Steps      []StepRecord `json:"steps"`
	Violations []Violation  `json:"violations,omitempty"`
}

// RunStore keeps the history of completed runs.
type RunStore interface {
	SaveRun(ctx context.Context, run RunRecord) error
	GetRun(ctx context.Context, id string) (RunRecord, bool, error)
	// ListRuns returns every stored run ordered by start time.
	ListRuns(ctx context.Context) ([]RunRecord, error)
	DeleteRun(ctx context.Context, id string) error
	Close() error
}
