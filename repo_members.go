package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Members stores the memberships of users in one kind of entity,
// organizations or projects.
type Members[M Membership] interface {
	repository.Repository[M]
	MembershipFinder[M]

	FindMembershipTx(ctx context.Context, tx bun.IDB, entityID, userID uuid.UUID) (M, error)
	ListByEntity(ctx context.Context, entityID uuid.UUID) ([]M, error)
	AddTx(ctx context.Context, tx bun.IDB, member M) (M, error)
	UpdateRolesTx(ctx context.Context, tx bun.IDB, entityID, userID uuid.UUID, roles []string) (M, error)
	DeleteByEntityTx(ctx context.Context, tx bun.IDB, entityID uuid.UUID) error
}

// memberRecord is a pointer to a membership model.
type memberRecord[T any] interface {
	*T
	Membership
}

type members[T any, M memberRecord[T]] struct {
	repository.Repository[M]
	db     *bun.DB
	column   string
	prep     func(M)
	setRoles func(M, []string)
}

var (
	_ Members[*OrganizationMember] = (*members[OrganizationMember, *OrganizationMember])(nil)
	_ Members[*ProjectMember]      = (*members[ProjectMember, *ProjectMember])(nil)
)

// NewOrganizationMembersRepository returns the organization memberships.
func NewOrganizationMembersRepository(db *bun.DB) Members[*OrganizationMember] {
	return newMembers[OrganizationMember](db, "organization_id",
		func(m *OrganizationMember) uuid.UUID { return m.ID },
		func(m *OrganizationMember, id uuid.UUID) { m.ID = id },
		func(m *OrganizationMember) {
			if m.ID == uuid.Nil {
				m.ID = uuid.New()
			}
			m.Roles = normalizeRoles(m.Roles)
			if m.CreatedAt == nil {
				m.CreatedAt = timestamp()
			}
		},
		func(m *OrganizationMember, roles []string) { m.Roles = roles },
	)
}

// NewProjectMembersRepository returns the project memberships.
func NewProjectMembersRepository(db *bun.DB) Members[*ProjectMember] {
	return newMembers[ProjectMember](db, "project_id",
		func(m *ProjectMember) uuid.UUID { return m.ID },
		func(m *ProjectMember, id uuid.UUID) { m.ID = id },
		func(m *ProjectMember) {
			if m.ID == uuid.Nil {
				m.ID = uuid.New()
			}
			m.Roles = normalizeRoles(m.Roles)
			if m.CreatedAt == nil {
				m.CreatedAt = timestamp()
			}
		},
		func(m *ProjectMember, roles []string) { m.Roles = roles },
	)
}

func newMembers[T any, M memberRecord[T]](
	db *bun.DB,
	column string,
	getID func(M) uuid.UUID,
	setID func(M, uuid.UUID),
	prep func(M),
	setRoles func(M, []string),
) *members[T, M] {
	repo := repository.NewRepository[M](db, repository.ModelHandlers[M]{
		NewRecord: func() M { return M(new(T)) },
		GetID: func(m M) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return getID(m)
		},
		SetID: func(m M, id uuid.UUID) {
			if m != nil {
				setID(m, id)
			}
		},
	})

	return &members[T, M]{
		Repository: repo,
		db:         db,
		column:     column,
		prep:       prep,
		setRoles:   setRoles,
	}
}

func (r *members[T, M]) FindMembership(ctx context.Context, entityID, userID uuid.UUID) (M, error) {
	return r.FindMembershipTx(ctx, r.db, entityID, userID)
}

func (r *members[T, M]) FindMembershipTx(ctx context.Context, tx bun.IDB, entityID, userID uuid.UUID) (M, error) {
	record := M(new(T))
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(r.column), entityID).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		var zero M
		if IsNotFound(err) {
			return zero, ErrNotFound
		}
		return zero, err
	}
	return record, nil
}

func (r *members[T, M]) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]M, error) {
	var records []M
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.? = ?", bun.Ident(r.column), entityID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *members[T, M]) AddTx(ctx context.Context, tx bun.IDB, member M) (M, error) {
	r.prep(member)
	return r.Repository.CreateTx(ctx, tx, member)
}

func (r *members[T, M]) UpdateRolesTx(ctx context.Context, tx bun.IDB, entityID, userID uuid.UUID, roles []string) (M, error) {
	record, err := r.FindMembershipTx(ctx, tx, entityID, userID)
	if err != nil {
		return record, err
	}

	r.setRoles(record, normalizeRoles(roles))

	if _, err := tx.NewUpdate().
		Model(record).
		Column("roles").
		WherePK().
		Exec(ctx); err != nil {
		var zero M
		return zero, err
	}
	return record, nil
}

func (r *members[T, M]) DeleteByEntityTx(ctx context.Context, tx bun.IDB, entityID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model(M(new(T))).
		Where("? = ?", bun.Ident(r.column), entityID).
		Exec(ctx)
	return err
}

// normalizeRoles keeps the stored list sorted and free of duplicates.
func normalizeRoles(roles []string) []string {
	return NewRoleSet(roles...).Slice()
}
