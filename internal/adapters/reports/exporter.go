// Package reports renders simulation reports in the background and stores
// the artifacts in the blob store.
package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"standsim/internal/blob"
	"standsim/internal/core"
	"standsim/internal/report"
	"standsim/internal/scenario"
)

// ExportStatus describes the lifecycle stage of an export request.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

const auditOperation = "report_export"

// DefaultURLExpiry is how long artifact links stay valid.
const DefaultURLExpiry = 24 * time.Hour

// ExportArtifact captures a stored report artifact.
type ExportArtifact struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Checksum    string    `json:"checksum,omitempty"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExportRecord tracks an export request and resulting artifacts.
type ExportRecord struct {
	ID          string              `json:"id"`
	RunID       string              `json:"run_id"`
	Scenario    string              `json:"scenario,omitempty"`
	Type        scenario.OutputType `json:"type"`
	Locale      string              `json:"locale,omitempty"`
	Zip         bool                `json:"zip"`
	Status      ExportStatus        `json:"status"`
	Error       string              `json:"error,omitempty"`
	Artifacts   []ExportArtifact    `json:"artifacts,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

// ExportInput is an enqueue request: the steps of a finished run and how to
// render them.
type ExportInput struct {
	RunID   string
	Steps   []*core.Step
	Options report.Options
}

// ExportScheduler queues report exports and exposes their status.
type ExportScheduler interface {
	EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error)
	GetExport(id string) (ExportRecord, bool)
}

// Worker executes report exports asynchronously, one at a time.
type Worker struct {
	store  blob.Store
	audit  core.AuditRecorder
	logger core.Logger
	expiry time.Duration

	queue chan exportTask
	mu    sync.RWMutex
	jobs  map[string]*ExportRecord
	done  map[string]chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type exportTask struct {
	id    string
	input ExportInput
}

// WorkerOption customises a Worker.
type WorkerOption func(*Worker)

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(audit core.AuditRecorder) WorkerOption {
	return func(w *Worker) { w.audit = audit }
}

// WithLogger sets the worker logger.
func WithLogger(logger core.Logger) WorkerOption {
	return func(w *Worker) { w.logger = logger }
}

// WithQueueSize bounds the number of pending exports.
func WithQueueSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan exportTask, n)
		}
	}
}

// WithURLExpiry sets the validity of the artifact links.
func WithURLExpiry(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.expiry = d
		}
	}
}

// NewWorker constructs an export worker writing to store.
func NewWorker(store blob.Store, opts ...WorkerOption) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		store:  store,
		expiry: DefaultURLExpiry,
		queue:  make(chan exportTask, 32),
		jobs:   make(map[string]*ExportRecord),
		done:   make(map[string]chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = nopLogger{}
	}
	return w
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case task := <-w.queue:
			w.process(task)
		}
	}
}

// EnqueueExport schedules an export job and returns the queued record.
func (w *Worker) EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error) {
	if w.store == nil {
		return ExportRecord{}, fmt.Errorf("report store not configured")
	}
	if input.RunID == "" {
		return ExportRecord{}, fmt.Errorf("run id required")
	}
	if len(input.Steps) == 0 {
		return ExportRecord{}, fmt.Errorf("run %s has no steps to report", input.RunID)
	}
	if input.Options.Type == "" {
		input.Options.Type = scenario.OutputXLSX
	}
	switch input.Options.Type {
	case scenario.OutputXLSX, scenario.OutputJSON:
	default:
		return ExportRecord{}, fmt.Errorf("output type %s not supported", input.Options.Type)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	record := ExportRecord{
		ID:        id,
		RunID:     input.RunID,
		Scenario:  input.Options.Scenario,
		Type:      input.Options.Type,
		Locale:    input.Options.Locale,
		Zip:       input.Options.Zip,
		Status:    ExportStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	w.done[id] = make(chan struct{})
	queuedSnapshot := record.copy()
	w.mu.Unlock()

	w.record(ctx, id, ExportStatusQueued, "", now)

	select {
	case w.queue <- exportTask{id: id, input: input}:
	default:
		w.record(ctx, id, ExportStatusFailed, "export queue full", now)
		w.mu.Lock()
		delete(w.jobs, id)
		delete(w.done, id)
		w.mu.Unlock()
		return ExportRecord{}, fmt.Errorf("export queue full")
	}
	return queuedSnapshot, nil
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (ExportRecord, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return ExportRecord{}, false
	}
	return record.copy(), true
}

// Wait blocks until export id succeeds or fails and returns its final record.
func (w *Worker) Wait(ctx context.Context, id string) (ExportRecord, error) {
	w.mu.RLock()
	done, ok := w.done[id]
	w.mu.RUnlock()
	if !ok {
		return ExportRecord{}, fmt.Errorf("export %s not found", id)
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ExportRecord{}, ctx.Err()
	}
	record, _ := w.GetExport(id)
	if record.Status == ExportStatusFailed {
		return record, errors.New(record.Error)
	}
	return record, nil
}

func (w *Worker) process(task exportTask) {
	w.updateStatus(task.id, ExportStatusRunning)

	rendered, err := report.Render(w.ctx, task.input.Steps, task.input.Options)
	if err != nil {
		w.fail(task.id, fmt.Sprintf("render reports: %v", err))
		return
	}

	artifacts := make([]ExportArtifact, 0, len(rendered))
	for _, a := range rendered {
		stored, err := w.put(task, a)
		if err != nil {
			w.fail(task.id, err.Error())
			return
		}
		artifacts = append(artifacts, stored)
	}
	w.complete(task.id, artifacts)
}

func (w *Worker) put(task exportTask, a report.Artifact) (ExportArtifact, error) {
	key := blob.ArtifactKey(task.input.RunID, a.Name)
	meta := map[string]string{
		"run_id":    task.input.RunID,
		"export_id": task.id,
		"scenario":  task.input.Options.Scenario,
		"decimals":  strconv.Itoa(task.input.Options.Decimals),
	}
	info, err := w.store.Put(w.ctx, key, bytes.NewReader(a.Body), blob.PutOptions{ContentType: a.ContentType, Metadata: meta})
	if err != nil {
		return ExportArtifact{}, fmt.Errorf("store artifact %s: %w", a.Name, err)
	}
	out := ExportArtifact{
		Key:         info.Key,
		Name:        a.Name,
		ContentType: info.ContentType,
		SizeBytes:   info.Size,
		Checksum:    info.Checksum,
		CreatedAt:   info.LastModified,
	}
	if out.ContentType == "" {
		out.ContentType = a.ContentType
	}
	if out.SizeBytes == 0 {
		out.SizeBytes = int64(len(a.Body))
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	url, err := w.store.URL(w.ctx, key, w.expiry)
	switch {
	case err == nil:
		out.URL = url
	case !errors.Is(err, blob.ErrUnsupported):
		w.logger.Warn("artifact link unavailable", "key", key, "error", err)
	}
	return out, nil
}

func (w *Worker) updateStatus(id string, status ExportStatus) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = ""
		record.UpdatedAt = now
	}
	w.mu.Unlock()
	w.record(w.ctx, id, status, "", now)
}

func (w *Worker) complete(id string, artifacts []ExportArtifact) {
	now := time.Now().UTC()
	w.finish(id, func(record *ExportRecord) {
		record.Status = ExportStatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	})
	w.logger.Info("reports exported", "export", id, "artifacts", len(artifacts))
	w.record(w.ctx, id, ExportStatusSucceeded, "", now)
	w.signal(id)
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.finish(id, func(record *ExportRecord) {
		record.Status = ExportStatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	})
	w.logger.Error("report export failed", "export", id, "error", reason)
	w.record(w.ctx, id, ExportStatusFailed, reason, now)
	w.signal(id)
}

func (w *Worker) finish(id string, update func(*ExportRecord)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		update(record)
	}
}

// signal releases the waiters of id once its final audit entry is recorded.
func (w *Worker) signal(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if done, ok := w.done[id]; ok {
		close(done)
	}
}

func (w *Worker) record(ctx context.Context, id string, status ExportStatus, reason string, at time.Time) {
	if w.audit == nil {
		return
	}
	entry := core.AuditEntry{
		Operation:  auditOperation,
		Status:     auditStatus(status),
		Error:      reason,
		Reference:  id,
		OccurredAt: at,
	}
	w.mu.RLock()
	if record, ok := w.jobs[id]; ok {
		entry.RunID = record.RunID
		entry.Scenario = record.Scenario
		if record.CompletedAt != nil {
			entry.Duration = record.CompletedAt.Sub(record.CreatedAt)
		}
	}
	w.mu.RUnlock()
	w.audit.Record(ctx, entry)
}

func auditStatus(status ExportStatus) core.AuditStatus {
	switch status {
	case ExportStatusQueued:
		return core.AuditStatusQueued
	case ExportStatusRunning:
		return core.AuditStatusRunning
	case ExportStatusFailed:
		return core.AuditStatusError
	default:
		return core.AuditStatusSuccess
	}
}

func (r ExportRecord) copy() ExportRecord {
	dup := r
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]ExportArtifact(nil), r.Artifacts...)
	}
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		dup.CompletedAt = &at
	}
	return dup
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
