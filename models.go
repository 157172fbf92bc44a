package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	FirstName      string     `bun:"first_name,notnull" json:"first_name"`
	LastName       string     `bun:"last_name,notnull" json:"last_name"`
	Email          string     `bun:"email,notnull,unique" json:"email"`
	EmailConfirmed bool       `bun:"is_email_verified,notnull" json:"is_email_verified"`
	Phone          string     `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash   string     `bun:"password_hash,notnull" json:"-"`
	LoginAttempts  int        `bun:"login_attempts,notnull" json:"-"`
	LoggedInAt     *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// Organization groups users and projects.
type Organization struct {
	bun.BaseModel `bun:"table:organizations,alias:org"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Name          string     `bun:"name,notnull" json:"name"`
	Description   string     `bun:"description" json:"description,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// OrganizationMember is the membership of a user in an organization.
type OrganizationMember struct {
	bun.BaseModel  `bun:"table:organization_members,alias:orgm"`
	ID             uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	OrganizationID uuid.UUID  `bun:"organization_id,notnull,type:uuid" json:"organization_id"`
	UserID         uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Owner          bool       `bun:"is_owner,notnull" json:"is_owner"`
	Roles          []string   `bun:"roles" json:"roles"`
	CreatedAt      *time.Time `bun:"created_at,nullzero" json:"created_at,omitempty"`
}

func (m *OrganizationMember) IsOwner() bool {
	return m != nil && m.Owner
}

func (m *OrganizationMember) GrantedRoles() RoleSet {
	if m == nil {
		return NewRoleSet()
	}
	return NewRoleSet(m.Roles...)
}

// Project belongs to an organization.
type Project struct {
	bun.BaseModel  `bun:"table:projects,alias:prj"`
	ID             uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	OrganizationID uuid.UUID  `bun:"organization_id,notnull,type:uuid" json:"organization_id"`
	Name           string     `bun:"name,notnull" json:"name"`
	Description    string     `bun:"description" json:"description,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// ProjectMember is the membership of a user in a project.
type ProjectMember struct {
	bun.BaseModel `bun:"table:project_members,alias:prjm"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	ProjectID     uuid.UUID  `bun:"project_id,notnull,type:uuid" json:"project_id"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Owner         bool       `bun:"is_owner,notnull" json:"is_owner"`
	Roles         []string   `bun:"roles" json:"roles"`
	CreatedAt     *time.Time `bun:"created_at,nullzero" json:"created_at,omitempty"`
}

func (m *ProjectMember) IsOwner() bool {
	return m != nil && m.Owner
}

func (m *ProjectMember) GrantedRoles() RoleSet {
	if m == nil {
		return NewRoleSet()
	}
	return NewRoleSet(m.Roles...)
}

// Deliverable is a unit of work tracked in a project.
type Deliverable struct {
	bun.BaseModel `bun:"table:deliverables,alias:dlv"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	ProjectID     uuid.UUID  `bun:"project_id,notnull,type:uuid" json:"project_id"`
	Title         string     `bun:"title,notnull" json:"title"`
	Description   string     `bun:"description" json:"description,omitempty"`
	DueAt         *time.Time `bun:"due_at,nullzero" json:"due_at,omitempty"`
	CompletedAt   *time.Time `bun:"completed_at,nullzero" json:"completed_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// Page is a one based page request.
type Page struct {
	Number int `json:"page" query:"page"`
	Size   int `json:"size" query:"size"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset is the number of rows to skip.
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Number - 1) * p.Size
}

func timestamp() *time.Time {
	now := time.Now().UTC()
	return &now
}
