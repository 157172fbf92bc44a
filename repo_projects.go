package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Projects interface {
	repository.Repository[*Project]

	GetByUUID(ctx context.Context, id uuid.UUID) (*Project, error)
	AddTx(ctx context.Context, tx bun.IDB, project *Project) (*Project, error)
	Rename(ctx context.Context, project *Project) (*Project, error)
	ListByOrganization(ctx context.Context, organizationID uuid.UUID, page Page) ([]*Project, int, error)
}

type projects struct {
	repository.Repository[*Project]
	db *bun.DB
}

var _ Projects = (*projects)(nil)

func NewProjectsRepository(db *bun.DB) Projects {
	repo := repository.NewRepository[*Project](db, repository.ModelHandlers[*Project]{
		NewRecord: func() *Project { return &Project{} },
		GetID: func(p *Project) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Project, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})
	return &projects{Repository: repo, db: db}
}

func (r *projects) GetByUUID(ctx context.Context, id uuid.UUID) (*Project, error) {
	return getByUUID[Project](ctx, r.db, id)
}

func (r *projects) AddTx(ctx context.Context, tx bun.IDB, project *Project) (*Project, error) {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	project.CreatedAt = timestamp()
	project.UpdatedAt = project.CreatedAt
	return r.Repository.CreateTx(ctx, tx, project)
}

// Rename stores the name and description of project.
func (r *projects) Rename(ctx context.Context, project *Project) (*Project, error) {
	project.UpdatedAt = timestamp()
	res, err := r.db.NewUpdate().
		Model(project).
		Column("name", "description", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res, project.ID); err != nil {
		return nil, err
	}
	return project, nil
}

func (r *projects) ListByOrganization(ctx context.Context, organizationID uuid.UUID, page Page) ([]*Project, int, error) {
	page = page.Normalize()

	var records []*Project
	total, err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.organization_id = ?", organizationID).
		OrderExpr("?TableAlias.created_at ASC, ?TableAlias.id ASC").
		Limit(page.Size).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

type Deliverables interface {
	repository.Repository[*Deliverable]

	GetByUUID(ctx context.Context, id uuid.UUID) (*Deliverable, error)
	Add(ctx context.Context, deliverable *Deliverable) (*Deliverable, error)
	Complete(ctx context.Context, deliverable *Deliverable) (*Deliverable, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, page Page) ([]*Deliverable, int, error)
}

type deliverables struct {
	repository.Repository[*Deliverable]
	db *bun.DB
}

var _ Deliverables = (*deliverables)(nil)

func NewDeliverablesRepository(db *bun.DB) Deliverables {
	repo := repository.NewRepository[*Deliverable](db, repository.ModelHandlers[*Deliverable]{
		NewRecord: func() *Deliverable { return &Deliverable{} },
		GetID: func(d *Deliverable) uuid.UUID {
			if d == nil {
				return uuid.Nil
			}
			return d.ID
		},
		SetID: func(d *Deliverable, id uuid.UUID) {
			if d != nil {
				d.ID = id
			}
		},
	})
	return &deliverables{Repository: repo, db: db}
}

func (r *deliverables) GetByUUID(ctx context.Context, id uuid.UUID) (*Deliverable, error) {
	return getByUUID[Deliverable](ctx, r.db, id)
}

func (r *deliverables) Add(ctx context.Context, deliverable *Deliverable) (*Deliverable, error) {
	if deliverable.ID == uuid.Nil {
		deliverable.ID = uuid.New()
	}
	deliverable.CreatedAt = timestamp()
	deliverable.UpdatedAt = deliverable.CreatedAt
	return r.Repository.Create(ctx, deliverable)
}

// Complete stamps the completion time. Completing twice keeps the first
// stamp.
func (r *deliverables) Complete(ctx context.Context, deliverable *Deliverable) (*Deliverable, error) {
	if deliverable.CompletedAt != nil {
		return deliverable, nil
	}

	now := timestamp()
	deliverable.CompletedAt = now
	deliverable.UpdatedAt = now

	res, err := r.db.NewUpdate().
		Model(deliverable).
		Column("completed_at", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res, deliverable.ID); err != nil {
		return nil, err
	}
	return deliverable, nil
}

func (r *deliverables) ListByProject(ctx context.Context, projectID uuid.UUID, page Page) ([]*Deliverable, int, error) {
	page = page.Normalize()

	var records []*Deliverable
	total, err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.project_id = ?", projectID).
		OrderExpr("?TableAlias.created_at ASC, ?TableAlias.id ASC").
		Limit(page.Size).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
