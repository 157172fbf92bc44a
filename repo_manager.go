package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Organizations() Organizations
	OrganizationMembers() Members[*OrganizationMember]
	Projects() Projects
	ProjectMembers() Members[*ProjectMember]
	Deliverables() Deliverables
}

type mngr struct {
	db                  *bun.DB
	users               Users
	organizations       Organizations
	organizationMembers Members[*OrganizationMember]
	projects            Projects
	projectMembers      Members[*ProjectMember]
	deliverables        Deliverables
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:                  db,
		users:               NewUsersRepository(db),
		organizations:       NewOrganizationsRepository(db),
		organizationMembers: NewOrganizationMembersRepository(db),
		projects:            NewProjectsRepository(db),
		projectMembers:      NewProjectMembersRepository(db),
		deliverables:        NewDeliverablesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("database should be initialized")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.organizations == nil || m.organizationMembers == nil {
		return errors.New("repository organizations should be initialized")
	}

	if m.projects == nil || m.projectMembers == nil || m.deliverables == nil {
		return errors.New("repository projects should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Organizations() Organizations {
	return m.organizations
}

func (m mngr) OrganizationMembers() Members[*OrganizationMember] {
	return m.organizationMembers
}

func (m mngr) Projects() Projects {
	return m.projects
}

func (m mngr) ProjectMembers() Members[*ProjectMember] {
	return m.projectMembers
}

func (m mngr) Deliverables() Deliverables {
	return m.deliverables
}

func getByUUID[T any](ctx context.Context, db bun.IDB, id uuid.UUID) (*T, error) {
	record := new(T)
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

func requireAffected(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}
	return nil
}
