package mcp

import (
	"strings"

	"github.com/taskmcp/taskmcp/internal/types"
)

// projectDTO/featureDTO/taskDTO are the full-object response shapes write
// operations return (spec.md §4.6). Field casing follows the tool-dispatch
// boundary convention: kebab-case-free JSON, camelCase keys.
type projectDTO struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Summary     string   `json:"summary,omitempty"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags,omitempty"`
	CreatedAt   string   `json:"createdAt"`
	ModifiedAt  string   `json:"modifiedAt"`
	Version     int      `json:"version"`
}

func toProjectDTO(p *types.Project) *projectDTO {
	return &projectDTO{
		ID:          p.ID.String(),
		Name:        p.Name,
		Summary:     p.Summary,
		Description: p.Description,
		Status:      string(p.Status),
		Tags:        []string(p.Tags),
		CreatedAt:   p.CreatedAt.Format(isoSecond),
		ModifiedAt:  p.ModifiedAt.Format(isoSecond),
		Version:     p.Version,
	}
}

type featureDTO struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Summary     string   `json:"summary,omitempty"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Tags        []string `json:"tags,omitempty"`
	ProjectID   *string  `json:"projectId,omitempty"`
	CreatedAt   string   `json:"createdAt"`
	ModifiedAt  string   `json:"modifiedAt"`
	Version     int      `json:"version"`
}

func toFeatureDTO(f *types.Feature) *featureDTO {
	return &featureDTO{
		ID:          f.ID.String(),
		Name:        f.Name,
		Summary:     f.Summary,
		Description: f.Description,
		Status:      string(f.Status),
		Priority:    string(f.Priority),
		Tags:        []string(f.Tags),
		ProjectID:   idPtrString(f.ProjectID),
		CreatedAt:   f.CreatedAt.Format(isoSecond),
		ModifiedAt:  f.ModifiedAt.Format(isoSecond),
		Version:     f.Version,
	}
}

type taskDTO struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary,omitempty"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Complexity  int      `json:"complexity"`
	Tags        []string `json:"tags,omitempty"`
	FeatureID   *string  `json:"featureId,omitempty"`
	ProjectID   *string  `json:"projectId,omitempty"`
	CreatedAt   string   `json:"createdAt"`
	ModifiedAt  string   `json:"modifiedAt"`
	Version     int      `json:"version"`
}

func toTaskDTO(t *types.Task) *taskDTO {
	return &taskDTO{
		ID:          t.ID.String(),
		Title:       t.Title,
		Summary:     t.Summary,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Complexity:  t.Complexity,
		Tags:        []string(t.Tags),
		FeatureID:   idPtrString(t.FeatureID),
		ProjectID:   idPtrString(t.ProjectID),
		CreatedAt:   t.CreatedAt.Format(isoSecond),
		ModifiedAt:  t.ModifiedAt.Format(isoSecond),
		Version:     t.Version,
	}
}

// minimalDTO is the reduced projection search operations return, per
// spec.md §4.6: "id, name/title, status, priority, and the nearest owning
// container id".
type minimalDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority,omitempty"`
	ContainerID *string `json:"containerId,omitempty"`
}

func minimalProject(p *types.Project) minimalDTO {
	return minimalDTO{ID: p.ID.String(), Name: p.Name, Status: string(p.Status)}
}

func minimalFeature(f *types.Feature) minimalDTO {
	return minimalDTO{ID: f.ID.String(), Name: f.Name, Status: string(f.Status), Priority: string(f.Priority), ContainerID: idPtrString(f.ProjectID)}
}

func minimalTask(t *types.Task) minimalDTO {
	containerID := idPtrString(t.FeatureID)
	if containerID == nil {
		containerID = idPtrString(t.ProjectID)
	}
	return minimalDTO{ID: t.ID.String(), Name: t.Title, Status: string(t.Status), Priority: string(t.Priority), ContainerID: containerID}
}

type sectionDTO struct {
	ID               string   `json:"id"`
	EntityType       string   `json:"entityType"`
	EntityID         string   `json:"entityId"`
	Title            string   `json:"title"`
	UsageDescription string   `json:"usageDescription,omitempty"`
	Content          string   `json:"content"`
	ContentFormat    string   `json:"contentFormat"`
	Ordinal          int      `json:"ordinal"`
	Tags             []string `json:"tags,omitempty"`
	CreatedAt        string   `json:"createdAt"`
	ModifiedAt       string   `json:"modifiedAt"`
}

func toSectionDTO(s *types.Section) *sectionDTO {
	return &sectionDTO{
		ID:               s.ID.String(),
		EntityType:       string(s.EntityType),
		EntityID:         s.EntityID.String(),
		Title:            s.Title,
		UsageDescription: s.UsageDescription,
		Content:          s.Content,
		ContentFormat:    string(s.ContentFormat),
		Ordinal:          s.Ordinal,
		Tags:             []string(s.Tags),
		CreatedAt:        s.CreatedAt.Format(isoSecond),
		ModifiedAt:       s.ModifiedAt.Format(isoSecond),
	}
}

type sectionPrototypeDTO struct {
	Title            string   `json:"title"`
	UsageDescription string   `json:"usageDescription,omitempty"`
	Content          string   `json:"content"`
	ContentFormat    string   `json:"contentFormat"`
	Ordinal          int      `json:"ordinal"`
	Tags             []string `json:"tags,omitempty"`
}

func toPrototypeDTO(p types.SectionPrototype) sectionPrototypeDTO {
	return sectionPrototypeDTO{
		Title:            p.Title,
		UsageDescription: p.UsageDescription,
		Content:          p.Content,
		ContentFormat:    string(p.ContentFormat),
		Ordinal:          p.Ordinal,
		Tags:             []string(p.Tags),
	}
}

func fromPrototypeDTO(p sectionPrototypeDTO) types.SectionPrototype {
	format, _ := types.ParseContentFormat(p.ContentFormat)
	if format == "" {
		format = types.FormatMarkdown
	}
	return types.SectionPrototype{
		Title:            p.Title,
		UsageDescription: p.UsageDescription,
		Content:          p.Content,
		ContentFormat:    format,
		Ordinal:          p.Ordinal,
		Tags:             types.TagSet(p.Tags),
	}
}

type templateDTO struct {
	ID               string                `json:"id"`
	Name             string                `json:"name"`
	Description      string                `json:"description,omitempty"`
	TargetEntityType string                `json:"targetEntityType"`
	IsEnabled        bool                  `json:"isEnabled"`
	IsBuiltin        bool                  `json:"isBuiltin"`
	Sections         []sectionPrototypeDTO `json:"sections"`
	CreatedAt        string                `json:"createdAt"`
	ModifiedAt       string                `json:"modifiedAt"`
}

func toTemplateDTO(t *types.Template) *templateDTO {
	protos := make([]sectionPrototypeDTO, len(t.Sections))
	for i, p := range t.Sections {
		protos[i] = toPrototypeDTO(p)
	}
	return &templateDTO{
		ID:               t.ID.String(),
		Name:             t.Name,
		Description:      t.Description,
		TargetEntityType: string(t.TargetEntityType),
		IsEnabled:        t.IsEnabled,
		IsBuiltin:        t.IsBuiltin,
		Sections:         protos,
		CreatedAt:        t.CreatedAt.Format(isoSecond),
		ModifiedAt:       t.ModifiedAt.Format(isoSecond),
	}
}

type dependencyDTO struct {
	ID        string `json:"id"`
	FromID    string `json:"fromId"`
	ToID      string `json:"toId"`
	Type      string `json:"type"`
	CreatedAt string `json:"createdAt"`
}

func toDependencyDTO(d *types.Dependency) *dependencyDTO {
	return &dependencyDTO{
		ID:        d.ID.String(),
		FromID:    d.FromID.String(),
		ToID:      d.ToID.String(),
		Type:      string(d.Type),
		CreatedAt: d.CreatedAt.Format(isoSecond),
	}
}

const isoSecond = "2006-01-02T15:04:05Z"

func idPtrString(id *types.ID) *string {
	if id == nil || id.IsZero() {
		return nil
	}
	s := id.String()
	return &s
}

func parseIDField(raw string) (types.ID, *Envelope) {
	if strings.TrimSpace(raw) == "" {
		return types.Nil, Fail(ValidationError, "id is required", nil)
	}
	id, err := types.ParseID(raw)
	if err != nil {
		return types.Nil, Fail(ValidationError, "invalid id", err.Error())
	}
	return id, nil
}

func parseOptionalIDField(raw string) (*types.ID, *Envelope) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := types.ParseID(raw)
	if err != nil {
		return nil, Fail(ValidationError, "invalid id", err.Error())
	}
	return &id, nil
}

func storeErrorEnvelope(err *types.StoreError) *Envelope {
	switch err.Kind {
	case types.ErrNotFound:
		return Fail(ResourceNotFound, err.Message, nil)
	case types.ErrValidation:
		return Fail(ValidationError, err.Message, nil)
	case types.ErrConflict:
		return Fail(DuplicateResource, err.Message, nil)
	case types.ErrDatabase:
		return Fail(DatabaseError, err.Message, nil)
	default:
		return Fail(InternalError, err.Message, nil)
	}
}
