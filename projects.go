package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ProjectMessage struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (m ProjectMessage) normalized() ProjectMessage {
	m.Name = strings.TrimSpace(m.Name)
	m.Description = strings.TrimSpace(m.Description)
	return m
}

func (m ProjectMessage) Validate() error {
	m = m.normalized()
	return validationError(validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&m.Description, validation.Length(0, 2000)),
	))
}

type AddProjectMemberMessage struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
}

type DeliverableMessage struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueAt       *time.Time `json:"due_at,omitempty"`
}

func (m DeliverableMessage) normalized() DeliverableMessage {
	m.Title = strings.TrimSpace(m.Title)
	m.Description = strings.TrimSpace(m.Description)
	return m
}

func (m DeliverableMessage) Validate() error {
	m = m.normalized()
	return validationError(validation.ValidateStruct(&m,
		validation.Field(&m.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&m.Description, validation.Length(0, 2000)),
	))
}

// ProjectPage is one page of projects.
type ProjectPage struct {
	Items []*Project `json:"items"`
	Total int        `json:"total"`
	Page  Page       `json:"page"`
}

// DeliverablePage is one page of deliverables.
type DeliverablePage struct {
	Items []*Deliverable `json:"items"`
	Total int            `json:"total"`
	Page  Page           `json:"page"`
}

// ProjectService manages projects, their members and deliverables.
type ProjectService struct {
	deps Deps
}

func NewProjectService(deps Deps) (*ProjectService, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &ProjectService{deps: deps.withDefaults()}, nil
}

// CreateProject needs ownership of the organization or the project creator
// role. The caller becomes the project owner.
func (s *ProjectService) CreateProject(ctx context.Context, identity *RequestIdentity, organizationID string, msg ProjectMessage) (*Project, error) {
	orgID, err := parseEntityID(organizationID)
	if err != nil {
		return nil, err
	}

	if _, err := AuthorizeMember[*OrganizationMember](ctx, s.deps.Repo.OrganizationMembers(), orgID, identity, RoleOrgProjectCreator); err != nil {
		return nil, err
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	userID, _ := identityUserID(identity)
	project := &Project{
		OrganizationID: orgID,
		Name:           strings.TrimSpace(msg.Name),
		Description:    strings.TrimSpace(msg.Description),
	}

	err = s.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if project, err = s.deps.Repo.Projects().AddTx(ctx, tx, project); err != nil {
			return err
		}
		_, err = s.deps.Repo.ProjectMembers().AddTx(ctx, tx, &ProjectMember{
			ProjectID: project.ID,
			UserID:    userID,
			Owner:     true,
		})
		return err
	})
	if err != nil {
		return nil, internalError(err, "failed to create project")
	}

	s.deps.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventProjectCreated,
		ActorID:   userID.String(),
		EntityID:  project.ID.String(),
		Metadata:  map[string]any{"organization_id": orgID.String()},
	})
	return project, nil
}

// ListProjects pages through an organization's projects for any member.
func (s *ProjectService) ListProjects(ctx context.Context, identity *RequestIdentity, organizationID string, page Page) (*ProjectPage, error) {
	orgID, err := parseEntityID(organizationID)
	if err != nil {
		return nil, err
	}

	if _, err := AuthorizeMember[*OrganizationMember](ctx, s.deps.Repo.OrganizationMembers(), orgID, identity, ""); err != nil {
		return nil, err
	}

	page = page.Normalize()
	items, total, err := s.deps.Repo.Projects().ListByOrganization(ctx, orgID, page)
	if err != nil {
		return nil, internalError(err, "failed to list projects")
	}
	if items == nil {
		items = []*Project{}
	}
	return &ProjectPage{Items: items, Total: total, Page: page}, nil
}

// GetProject returns the project to any of its members.
func (s *ProjectService) GetProject(ctx context.Context, identity *RequestIdentity, projectID string) (*Project, error) {
	id, err := parseEntityID(projectID)
	if err != nil {
		return nil, err
	}

	if _, err := AuthorizeMember[*ProjectMember](ctx, s.deps.Repo.ProjectMembers(), id, identity, ""); err != nil {
		return nil, err
	}

	return s.project(ctx, id)
}

// UpdateProject renames a project. Owner or project administrator.
func (s *ProjectService) UpdateProject(ctx context.Context, identity *RequestIdentity, projectID string, msg ProjectMessage) (*Project, error) {
	id, err := parseEntityID(projectID)
	if err != nil {
		return nil, err
	}

	if _, err := AuthorizeMember[*ProjectMember](ctx, s.deps.Repo.ProjectMembers(), id, identity, RoleProjectAdministrator); err != nil {
		return nil, err
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	project, err := s.project(ctx, id)
	if err != nil {
		return nil, err
	}

	project.Name = strings.TrimSpace(msg.Name)
	project.Description = strings.TrimSpace(msg.Description)

	project, err = s.deps.Repo.Projects().Rename(ctx, project)
	if err != nil {
		return nil, internalError(err, "failed to update project")
	}
	return project, nil
}

// AddProjectMember grants project roles to a user. Owner or project
// administrator.
func (s *ProjectService) AddProjectMember(ctx context.Context, identity *RequestIdentity, projectID string, msg AddProjectMemberMessage) (*ProjectMember, error) {
	id, err := parseEntityID(projectID)
	if err != nil {
		return nil, err
	}

	if _, err := AuthorizeMember[*ProjectMember](ctx, s.deps.Repo.ProjectMembers(), id, identity, RoleProjectAdministrator); err != nil {
		return nil, err
	}

	targetID, err := ParseID(msg.UserID)
	if err != nil {
		return nil, err
	}

	roles, err := restrictRoles(msg.Roles, ProjectRoles)
	if err != nil {
		return nil, err
	}

	var member *ProjectMember
	err = s.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := getByUUID[User](ctx, tx, targetID); err != nil {
			return err
		}

		_, err := s.deps.Repo.ProjectMembers().FindMembershipTx(ctx, tx, id, targetID)
		switch {
		case err == nil:
			return ErrAlreadyMember
		case !IsNotFound(err):
			return err
		}

		member, err = s.deps.Repo.ProjectMembers().AddTx(ctx, tx, &ProjectMember{
			ProjectID: id,
			UserID:    targetID,
			Roles:     roles,
		})
		return err
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, internalError(err, "failed to add project member")
	}

	s.deps.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventProjectMemberAdded,
		ActorID:   identity.UserID,
		UserID:    targetID.String(),
		EntityID:  id.String(),
		Metadata:  map[string]any{"roles": roles},
	})
	return member, nil
}

// CreateDeliverable adds a deliverable. Owner or deliverable manager.
func (s *ProjectService) CreateDeliverable(ctx context.Context, identity *RequestIdentity, projectID string, msg DeliverableMessage) (*Deliverable, error) {
	id, err := parseEntityID(projectID)
	if err != nil {
		return nil, err
	}

	if _, err := AuthorizeMember[*ProjectMember](ctx, s.deps.Repo.ProjectMembers(), id, identity, RoleProjectDeliverableManager); err != nil {
		return nil, err
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	deliverable := &Deliverable{
		ProjectID:   id,
		Title:       strings.TrimSpace(msg.Title),
		Description: strings.TrimSpace(msg.Description),
	}
	if msg.DueAt != nil {
		due := msg.DueAt.UTC()
		deliverable.DueAt = &due
	}

	deliverable, err = s.deps.Repo.Deliverables().Add(ctx, deliverable)
	if err != nil {
		return nil, internalError(err, "failed to create deliverable")
	}
	return deliverable, nil
}

// CompleteDeliverable marks a deliverable done. Owner or deliverable
// manager of the project it belongs to.
func (s *ProjectService) CompleteDeliverable(ctx context.Context, identity *RequestIdentity, projectID, deliverableID string) (*Deliverable, error) {
	id, err := parseEntityID(projectID)
	if err != nil {
		return nil, err
	}

	if _, err := AuthorizeMember[*ProjectMember](ctx, s.deps.Repo.ProjectMembers(), id, identity, RoleProjectDeliverableManager); err != nil {
		return nil, err
	}

	did, err := ParseID(deliverableID)
	if err != nil {
		return nil, err
	}

	deliverable, err := s.deps.Repo.Deliverables().GetByUUID(ctx, did)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, internalError(err, "failed to load deliverable")
	}

	if deliverable.ProjectID != id {
		return nil, ErrNotFound
	}

	deliverable, err = s.deps.Repo.Deliverables().Complete(ctx, deliverable)
	if err != nil {
		return nil, internalError(err, "failed to complete deliverable")
	}
	return deliverable, nil
}

// ListDeliverables pages through a project's deliverables for any member.
func (s *ProjectService) ListDeliverables(ctx context.Context, identity *RequestIdentity, projectID string, page Page) (*DeliverablePage, error) {
	id, err := parseEntityID(projectID)
	if err != nil {
		return nil, err
	}

	if _, err := AuthorizeMember[*ProjectMember](ctx, s.deps.Repo.ProjectMembers(), id, identity, ""); err != nil {
		return nil, err
	}

	page = page.Normalize()
	items, total, err := s.deps.Repo.Deliverables().ListByProject(ctx, id, page)
	if err != nil {
		return nil, internalError(err, "failed to list deliverables")
	}
	if items == nil {
		items = []*Deliverable{}
	}
	return &DeliverablePage{Items: items, Total: total, Page: page}, nil
}

func (s *ProjectService) project(ctx context.Context, id uuid.UUID) (*Project, error) {
	project, err := s.deps.Repo.Projects().GetByUUID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, internalError(err, "failed to load project")
	}
	return project, nil
}
