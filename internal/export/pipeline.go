// Package export mirrors successful store writes into a Markdown vault, per
// spec.md §4.5. A decorator (decorator.go) enqueues jobs on a per-vault
// single-consumer queue (queue.go); the consumer renders entities to disk
// (render.go), resolves their paths (path.go), and tracks what it wrote in
// a sync-state index (syncstate.go) so renames/terminal-status moves can
// delete the stale file.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/taskmcp/taskmcp/internal/storage"
	"github.com/taskmcp/taskmcp/internal/types"
)

func nowUTC() time.Time { return time.Now().UTC() }

// TerminalStatuses reports, per entity kind, which statuses are terminal —
// supplied by the workflow engine's compiled snapshot so the export
// pipeline never has to parse workflow config itself.
type TerminalStatuses struct {
	Tasks    map[types.Status]bool
	Features map[types.Status]bool
	Projects map[types.Status]bool
}

// Pipeline renders entities into vaultPath and tracks what it wrote.
type Pipeline struct {
	store     storage.Storage
	vaultPath string
	state     *SyncState
	queue     *Queue
	logger    *slog.Logger
	terminal  TerminalStatuses
}

// NewPipeline opens (or creates) vaultPath and starts the consumer
// goroutine bound to ctx.
func NewPipeline(ctx context.Context, store storage.Storage, vaultPath string, terminal TerminalStatuses, logger *slog.Logger) (*Pipeline, error) {
	if err := os.MkdirAll(vaultPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating vault directory: %w", err)
	}
	p := &Pipeline{
		store:     store,
		vaultPath: vaultPath,
		state:     LoadSyncState(vaultPath, logger),
		logger:    logger,
		terminal:  terminal,
	}
	p.queue = NewQueue(ctx, logger, p.handle)
	return p, nil
}

// Decorate wraps store with a decorator that enqueues export jobs after
// every successful mutating call, per spec.md §4.5.
func (p *Pipeline) Decorate(store storage.Storage) storage.Storage {
	return &decoratedStore{inner: store, queue: p.queue}
}

// Enqueue posts a job directly; used by the decorator and by rebuild_vault.
func (p *Pipeline) Enqueue(job Job) { p.queue.Enqueue(job) }

// Shutdown waits for the consumer to drain after ctx (passed to NewPipeline)
// is cancelled.
func (p *Pipeline) Shutdown() { p.queue.Wait() }

// FullExport enqueues ExportEntity for every Project, Feature, and Task, the
// recovery mechanism for a wiped or out-of-sync vault (spec.md §4.5).
func (p *Pipeline) FullExport(ctx context.Context) error {
	projects := p.store.Projects().FindAll(ctx, 0)
	if !projects.Ok() {
		return projects.Err()
	}
	for _, proj := range projects.Value() {
		p.Enqueue(Job{Kind: JobExportEntity, EntityType: types.EntityProject, EntityID: proj.ID})
	}
	features := p.store.Features().FindAll(ctx, 0)
	if !features.Ok() {
		return features.Err()
	}
	for _, f := range features.Value() {
		p.Enqueue(Job{Kind: JobExportEntity, EntityType: types.EntityFeature, EntityID: f.ID})
	}
	tasks := p.store.Tasks().FindAll(ctx, 0)
	if !tasks.Ok() {
		return tasks.Err()
	}
	for _, t := range tasks.Value() {
		p.Enqueue(Job{Kind: JobExportEntity, EntityType: types.EntityTask, EntityID: t.ID})
	}
	return nil
}

// handle processes one job; any failure is logged at warn and never
// propagated, per spec.md §7.
func (p *Pipeline) handle(ctx context.Context, job Job) {
	var err error
	switch job.Kind {
	case JobExportEntity:
		err = p.exportEntity(ctx, job.EntityType, job.EntityID)
	case JobDeleteEntity:
		err = p.deleteEntity(job.EntityID, job.KnownPath)
	case JobCascade:
		err = p.cascade(ctx, job.EntityType, job.EntityID)
	}
	if err != nil {
		p.logger.Warn("export job failed", "kind", job.Kind, "entityId", job.EntityID, "error", err)
	}
}

func (p *Pipeline) exportEntity(ctx context.Context, kind types.EntityType, id types.ID) error {
	switch kind {
	case types.EntityProject:
		return p.exportProject(ctx, id)
	case types.EntityFeature:
		return p.exportFeature(ctx, id)
	case types.EntityTask:
		return p.exportTask(ctx, id)
	default:
		return fmt.Errorf("export: unsupported entity type %q", kind)
	}
}

func (p *Pipeline) exportProject(ctx context.Context, id types.ID) error {
	res := p.store.Projects().GetByID(ctx, id)
	if !res.Ok() {
		return res.Err()
	}
	proj := res.Value()
	terminal := p.terminal.Projects[proj.Status]
	newPath := ProjectPath(proj.Name, proj.Status, terminal)

	if err := p.handleMove(id, newPath); err != nil {
		return err
	}

	featuresRes := p.store.Features().ByProject(ctx, id)
	if !featuresRes.Ok() {
		return featuresRes.Err()
	}
	sectionsRes := p.store.Sections().List(ctx, types.EntityProject, id)
	if !sectionsRes.Ok() {
		return sectionsRes.Err()
	}

	table := RenderFeatureStatusTable(featuresRes.Value(), p.terminal.Features)
	front := FrontMatter{
		ID: proj.ID.String(), Type: string(types.EntityProject), Name: proj.Name,
		Status: string(proj.Status), Tags: []string(proj.Tags),
		CreatedAt: proj.CreatedAt.UTC().Format(isoSecond), ModifiedAt: proj.ModifiedAt.UTC().Format(isoSecond),
	}
	doc, err := RenderDocument(front, proj.Summary, sectionsRes.Value(), table)
	if err != nil {
		return err
	}
	if err := p.writeFile(newPath, doc); err != nil {
		return err
	}
	return p.recordAndCascadeIfMoved(id, types.EntityProject, newPath, func() error {
		for _, f := range featuresRes.Value() {
			p.Enqueue(Job{Kind: JobExportEntity, EntityType: types.EntityFeature, EntityID: f.ID})
		}
		return nil
	})
}

func (p *Pipeline) exportFeature(ctx context.Context, id types.ID) error {
	res := p.store.Features().GetByID(ctx, id)
	if !res.Ok() {
		return res.Err()
	}
	f := res.Value()

	var projectName *string
	if f.HasProject() {
		pr := p.store.Projects().GetByID(ctx, *f.ProjectID)
		if pr.Ok() {
			name := pr.Value().Name
			projectName = &name
		}
	}
	terminal := p.terminal.Features[f.Status]
	newPath := FeaturePath(projectName, f.Name, f.Status, terminal)

	if err := p.handleMove(id, newPath); err != nil {
		return err
	}

	tasksRes := p.store.Tasks().ByFeature(ctx, id)
	if !tasksRes.Ok() {
		return tasksRes.Err()
	}
	sectionsRes := p.store.Sections().List(ctx, types.EntityFeature, id)
	if !sectionsRes.Ok() {
		return sectionsRes.Err()
	}

	table := RenderTaskStatusTable(tasksRes.Value(), p.terminal.Tasks)
	front := FrontMatter{
		ID: f.ID.String(), Type: string(types.EntityFeature), Name: f.Name,
		Status: string(f.Status), Priority: string(f.Priority), Tags: []string(f.Tags),
		CreatedAt: f.CreatedAt.UTC().Format(isoSecond), ModifiedAt: f.ModifiedAt.UTC().Format(isoSecond),
	}
	if f.HasProject() {
		front.ProjectID = f.ProjectID.String()
	}
	doc, err := RenderDocument(front, f.Summary, sectionsRes.Value(), table)
	if err != nil {
		return err
	}
	if err := p.writeFile(newPath, doc); err != nil {
		return err
	}
	return p.recordAndCascadeIfMoved(id, types.EntityFeature, newPath, func() error {
		for _, t := range tasksRes.Value() {
			p.Enqueue(Job{Kind: JobExportEntity, EntityType: types.EntityTask, EntityID: t.ID})
		}
		return nil
	})
}

func (p *Pipeline) exportTask(ctx context.Context, id types.ID) error {
	res := p.store.Tasks().GetByID(ctx, id)
	if !res.Ok() {
		return res.Err()
	}
	t := res.Value()

	var projectName, featureName *string
	if t.FeatureID != nil {
		fr := p.store.Features().GetByID(ctx, *t.FeatureID)
		if fr.Ok() {
			name := fr.Value().Name
			featureName = &name
			if fr.Value().HasProject() {
				pr := p.store.Projects().GetByID(ctx, *fr.Value().ProjectID)
				if pr.Ok() {
					pname := pr.Value().Name
					projectName = &pname
				}
			}
		}
	} else if t.ProjectID != nil {
		pr := p.store.Projects().GetByID(ctx, *t.ProjectID)
		if pr.Ok() {
			pname := pr.Value().Name
			projectName = &pname
		}
	}

	terminal := p.terminal.Tasks[t.Status]
	newPath := TaskPath(projectName, featureName, t.Title, t.Status, terminal)

	if err := p.handleMove(id, newPath); err != nil {
		return err
	}

	sectionsRes := p.store.Sections().List(ctx, types.EntityTask, id)
	if !sectionsRes.Ok() {
		return sectionsRes.Err()
	}
	front := FrontMatter{
		ID: t.ID.String(), Type: string(types.EntityTask), Name: t.Title,
		Status: string(t.Status), Priority: string(t.Priority), Tags: []string(t.Tags),
		CreatedAt: t.CreatedAt.UTC().Format(isoSecond), ModifiedAt: t.ModifiedAt.UTC().Format(isoSecond),
	}
	if t.FeatureID != nil {
		front.FeatureID = t.FeatureID.String()
	}
	if projectName != nil && t.ProjectID != nil {
		front.ProjectID = t.ProjectID.String()
	}
	doc, err := RenderDocument(front, t.Summary, sectionsRes.Value(), "")
	if err != nil {
		return err
	}
	if err := p.writeFile(newPath, doc); err != nil {
		return err
	}
	return p.recordAndCascadeIfMoved(id, types.EntityTask, newPath, func() error {
		if t.FeatureID != nil {
			p.Enqueue(Job{Kind: JobExportEntity, EntityType: types.EntityFeature, EntityID: *t.FeatureID})
		}
		if t.ProjectID != nil {
			p.Enqueue(Job{Kind: JobExportEntity, EntityType: types.EntityProject, EntityID: *t.ProjectID})
		}
		return nil
	})
}

// handleMove consults the sync-state index; if a prior path is recorded and
// differs from newPath, it deletes the old file and prunes now-empty parent
// directories, per spec.md §4.5's rename/move detection.
func (p *Pipeline) handleMove(id types.ID, newPath string) error {
	prior, ok := p.state.Get(id)
	if !ok || prior.Path == newPath {
		return nil
	}
	return p.deleteEntity(id, prior.Path)
}

// recordAndCascadeIfMoved updates the sync-state entry for id and, if its
// path actually changed, enqueues onMoved — spec.md §4.5's "after
// re-exporting the parent, if its resolved path changed ... iterate its
// children and enqueue ExportEntity for each".
func (p *Pipeline) recordAndCascadeIfMoved(id types.ID, kind types.EntityType, newPath string, onMoved func() error) error {
	prior, hadPrior := p.state.Get(id)
	if err := p.state.Record(id, SyncEntry{Path: newPath, EntityType: kind, LastModified: nowUTC()}); err != nil {
		return err
	}
	if hadPrior && prior.Path == newPath {
		return nil
	}
	return onMoved()
}

func (p *Pipeline) deleteEntity(id types.ID, knownPath string) error {
	entry, ok := p.state.Get(id)
	target := knownPath
	if ok {
		target = entry.Path
	}
	if target == "" {
		return nil
	}
	full := filepath.Join(p.vaultPath, target)
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", full, err)
	}
	p.pruneEmptyDirs(filepath.Dir(full))
	return p.state.Remove(id)
}

// pruneEmptyDirs walks upward from dir removing empty directories, stopping
// at the vault root.
func (p *Pipeline) pruneEmptyDirs(dir string) {
	root := filepath.Clean(p.vaultPath)
	for {
		dir = filepath.Clean(dir)
		if dir == root || len(dir) <= len(root) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func (p *Pipeline) writeFile(relPath, content string) error {
	full := filepath.Join(p.vaultPath, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating parent directories for %s: %w", full, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", full, err)
	}
	return nil
}

// cascade is triggered by a parent-entity change whose effect on children's
// paths must be recomputed; it simply re-exports the entity, which in turn
// re-triggers the move/cascade logic above.
func (p *Pipeline) cascade(ctx context.Context, kind types.EntityType, id types.ID) error {
	return p.exportEntity(ctx, kind, id)
}
