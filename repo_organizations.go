package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Organizations interface {
	repository.Repository[*Organization]

	GetByUUID(ctx context.Context, id uuid.UUID) (*Organization, error)
	AddTx(ctx context.Context, tx bun.IDB, org *Organization) (*Organization, error)
	ListForUser(ctx context.Context, userID uuid.UUID, page Page) ([]*Organization, int, error)
	DeleteCascadeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type organizations struct {
	repository.Repository[*Organization]
	db *bun.DB
}

var _ Organizations = (*organizations)(nil)

func NewOrganizationsRepository(db *bun.DB) Organizations {
	repo := repository.NewRepository[*Organization](db, repository.ModelHandlers[*Organization]{
		NewRecord: func() *Organization { return &Organization{} },
		GetID: func(o *Organization) uuid.UUID {
			if o == nil {
				return uuid.Nil
			}
			return o.ID
		},
		SetID: func(o *Organization, id uuid.UUID) {
			if o != nil {
				o.ID = id
			}
		},
	})
	return &organizations{Repository: repo, db: db}
}

func (r *organizations) GetByUUID(ctx context.Context, id uuid.UUID) (*Organization, error) {
	return getByUUID[Organization](ctx, r.db, id)
}

func (r *organizations) AddTx(ctx context.Context, tx bun.IDB, org *Organization) (*Organization, error) {
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	org.CreatedAt = timestamp()
	org.UpdatedAt = org.CreatedAt
	return r.Repository.CreateTx(ctx, tx, org)
}

// ListForUser pages through the organizations userID belongs to, oldest
// first, and returns the total count.
func (r *organizations) ListForUser(ctx context.Context, userID uuid.UUID, page Page) ([]*Organization, int, error) {
	page = page.Normalize()

	var records []*Organization
	total, err := r.db.NewSelect().
		Model(&records).
		Join("JOIN organization_members AS orgm ON orgm.organization_id = org.id").
		Where("orgm.user_id = ?", userID).
		OrderExpr("org.created_at ASC, org.id ASC").
		Limit(page.Size).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// DeleteCascadeTx removes the organization with its projects, deliverables and
// memberships.
func (r *organizations) DeleteCascadeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	projectIDs := tx.NewSelect().
		Model((*Project)(nil)).
		Column("id").
		Where("organization_id = ?", id)

	if _, err := tx.NewDelete().
		Model((*Deliverable)(nil)).
		Where("project_id IN (?)", projectIDs).
		Exec(ctx); err != nil {
		return err
	}

	if _, err := tx.NewDelete().
		Model((*ProjectMember)(nil)).
		Where("project_id IN (?)", projectIDs).
		Exec(ctx); err != nil {
		return err
	}

	if _, err := tx.NewDelete().
		Model((*Project)(nil)).
		Where("organization_id = ?", id).
		Exec(ctx); err != nil {
		return err
	}

	if _, err := tx.NewDelete().
		Model((*OrganizationMember)(nil)).
		Where("organization_id = ?", id).
		Exec(ctx); err != nil {
		return err
	}

	res, err := tx.NewDelete().
		Model((*Organization)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}
