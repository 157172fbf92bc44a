package auth

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// HTTPController exposes accounts, organizations and projects as a JSON
// API. Mount it behind AuthenticationGate.Middleware so protected routes
// can find the request identity.
type HTTPController struct {
	accounts *Accounts
	orgs     *OrganizationService
	projects *ProjectService
	clientID ClientIdentifier

	Logger       Logger
	ErrorHandler func(ctx router.Context, err error) error
}

type HTTPControllerOption func(*HTTPController)

func WithControllerLogger(logger Logger) HTTPControllerOption {
	return func(c *HTTPController) {
		c.Logger = normalizeLogger(logger)
	}
}

// WithControllerErrorHandler replaces ErrorHandler as the way failures are
// written.
func WithControllerErrorHandler(fn func(router.Context, error) error) HTTPControllerOption {
	return func(c *HTTPController) {
		if fn != nil {
			c.ErrorHandler = fn
		}
	}
}

// WithControllerClientIdentifier sets how login identifies the client. Pass
// the gate's ClientID so sessions match what the gate sees.
func WithControllerClientIdentifier(fn ClientIdentifier) HTTPControllerOption {
	return func(c *HTTPController) {
		if fn != nil {
			c.clientID = fn
		}
	}
}

func NewHTTPController(accounts *Accounts, orgs *OrganizationService, projects *ProjectService, opts ...HTTPControllerOption) *HTTPController {
	if accounts == nil || orgs == nil || projects == nil {
		panic("missing services in http controller")
	}

	c := &HTTPController{
		accounts:     accounts,
		orgs:         orgs,
		projects:     projects,
		clientID:     RequestIP,
		Logger:       defLogger{},
		ErrorHandler: ErrorHandler,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// RegisterRoutes mounts every route on r.
func (c *HTTPController) RegisterRoutes(r RouteRegistrar) {
	protected := RequireAuthenticated()

	r.Post("/auth/signup", c.Signup).SetName("auth.signup")
	r.Post("/auth/login", c.Login).SetName("auth.login")
	r.Post("/auth/password-recovery", c.RequestPasswordRecovery).SetName("auth.password_recovery")
	r.Post("/auth/password-recovery/finalize", c.FinalizePasswordRecovery).SetName("auth.password_recovery.finalize")
	r.Post("/auth/primary-email/confirm", c.ConfirmPrimaryEmail).SetName("auth.primary_email.confirm")

	r.Get("/me", c.Profile, protected).SetName("me.get")
	r.Put("/me/password", c.ChangePassword, protected).SetName("me.password")
	r.Post("/me/primary-email-change", c.RequestPrimaryEmailChange, protected).SetName("me.primary_email_change")
	r.Post("/me/primary-email-change/confirm", c.ConfirmPrimaryEmailChange, protected).SetName("me.primary_email_change.confirm")
	r.Post("/me/primary-email-confirmation", c.RequestPrimaryEmailConfirmation, protected).SetName("me.primary_email_confirmation")

	r.Get("/organizations", c.ListOrganizations, protected).SetName("organizations.list")
	r.Post("/organizations", c.CreateOrganization, protected).SetName("organizations.create")
	r.Get("/organizations/:id", c.GetOrganization, protected).SetName("organizations.get")
	r.Delete("/organizations/:id", c.DeleteOrganization, protected).SetName("organizations.delete")
	r.Get("/organizations/:id/members", c.ListMembers, protected).SetName("organizations.members")
	r.Put("/organizations/:id/members/:user_id/roles", c.UpdateMemberRoles, protected).SetName("organizations.members.roles")
	r.Post("/organizations/:id/invites", c.InviteMember, protected).SetName("organizations.invites")
	r.Get("/organizations/:id/projects", c.ListProjects, protected).SetName("organizations.projects")
	r.Post("/organizations/:id/projects", c.CreateProject, protected).SetName("organizations.projects.create")
	r.Post("/invites/accept", c.AcceptInvite, protected).SetName("invites.accept")

	r.Get("/projects/:id", c.GetProject, protected).SetName("projects.get")
	r.Put("/projects/:id", c.UpdateProject, protected).SetName("projects.update")
	r.Post("/projects/:id/members", c.AddProjectMember, protected).SetName("projects.members.add")
	r.Get("/projects/:id/deliverables", c.ListDeliverables, protected).SetName("projects.deliverables")
	r.Post("/projects/:id/deliverables", c.CreateDeliverable, protected).SetName("projects.deliverables.create")
	r.Post("/projects/:id/deliverables/:deliverable_id/complete", c.CompleteDeliverable, protected).SetName("projects.deliverables.complete")
}

func (c *HTTPController) Signup(ctx router.Context) error {
	msg := SignupMessage{}
	if err := c.bind(ctx, &msg); err != nil {
		return c.fail(ctx, err)
	}

	user, err := c.accounts.Signup(ctx.Context(), msg)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, user)
}

func (c *HTTPController) Login(ctx router.Context) error {
	msg := LoginMessage{}
	if err := c.bind(ctx, &msg); err != nil {
		return c.fail(ctx, err)
	}
	msg.ClientID = c.clientID(ctx)

	res, err := c.accounts.Login(ctx.Context(), msg)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, res)
}

// RequestPasswordRecovery always answers 202 so the response does not
// reveal whether the address has an account.
func (c *HTTPController) RequestPasswordRecovery(ctx router.Context) error {
	msg := RequestPasswordRecoveryMessage{}
	if err := c.bind(ctx, &msg); err != nil {
		return c.fail(ctx, err)
	}

	if err := c.accounts.RequestPasswordRecovery(ctx.Context(), msg); err != nil {
		return c.fail(ctx, err)
	}
	return ctx.NoContent(http.StatusAccepted)
}

func (c *HTTPController) FinalizePasswordRecovery(ctx router.Context) error {
	msg := FinalizePasswordRecoveryMessage{}
	if err := c.bind(ctx, &msg); err != nil {
		return c.fail(ctx, err)
	}

	if err := c.accounts.FinalizePasswordRecovery(ctx.Context(), msg); err != nil {
		return c.fail(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (c *HTTPController) ConfirmPrimaryEmail(ctx router.Context) error {
	msg := ConfirmPrimaryEmailMessage{}
	if err := c.bind(ctx, &msg); err != nil {
		return c.fail(ctx, err)
	}

	if err := c.accounts.ConfirmPrimaryEmail(ctx.Context(), msg); err != nil {
		return c.fail(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (c *HTTPController) Profile(ctx router.Context) error {
	user, err := c.accounts.GetProfile(ctx.Context(), identityOf(ctx))
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, user)
}

func (c *HTTPController) ChangePassword(ctx router.Context) error {
	msg := ChangePasswordMessage{}
	if err := c.bind(ctx, &msg); err != nil {
		return c.fail(ctx, err)
	}
	msg.Identity = identityOf(ctx)

	if err := c.accounts.ChangePassword(ctx.Context(), msg); err != nil {
		return c.fail(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// RequestPrimaryEmailChange answers with the confirmation code. The token
// goes to the new address by mail.
func (c *HTTPController) RequestPrimaryEmailChange(ctx router.Context) error {
	msg := RequestPrimaryEmailChangeMessage{}
	if err := c.bind(ctx, &msg); err != nil {
		return c.fail(ctx, err)
	}
	msg.Identity = identityOf(ctx)

	code, err := c.accounts.RequestPrimaryEmailChange(ctx.Context(), msg)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusAccepted, map[string]string{"code": code})
}

func (c *HTTPController) ConfirmPrimaryEmailChange(ctx router.Context) error {
	msg := ConfirmPrimaryEmailChangeMessage{}
	if err := c.bind(ctx, &msg); err != nil {
		return c.fail(ctx, err)
	}
	msg.Identity = identityOf(ctx)

	if err := c.accounts.ConfirmPrimaryEmailChange(ctx.Context(), msg); err != nil {
		return c.fail(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (c *HTTPController) RequestPrimaryEmailConfirmation(ctx router.Context) error {
	msg := RequestPrimaryEmailConfirmationMessage{Identity: identityOf(ctx)}
	if err := c.accounts.RequestPrimaryEmailConfirmation(ctx.Context(), msg); err != nil {
		return c.fail(ctx, err)
	}
	return ctx.NoContent(http.StatusAccepted)
}

func (c *HTTPController) ListOrganizations(ctx router.Context) error {
	page, err := c.orgs.ListOrganizations(ctx.Context(), identityOf(ctx), pageOf(ctx))
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, page)
}

func (c *HTTPController) CreateOrganization(ctx router.Context) error {
	msg := CreateOrganizationMessage{}
	if err := c.bind(ctx, &msg); err != nil {
		return c.fail(ctx, err)
	}

	org, err := c.orgs.CreateOrganization(ctx.Context(), identityOf(ctx), msg)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, org)
}

func (c *HTTPController) GetOrganization(ctx router.Context) error {
	org, err := c.orgs.GetOrganization(ctx.Context(), identityOf(ctx), ctx.Param("id"))
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, org)
}

func (c *HTTPController) DeleteOrganization(ctx router.Context) error {
	if err := c.orgs.DeleteOrganization(ctx.Context(), identityOf(ctx), ctx.Param("id")); err != nil {
		return c.fail(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (c *HTTPController) ListMembers(ctx router.Context) error {
	members, err := c.orgs.ListMembers(ctx.Context(), identityOf(ctx), ctx.Param("id"))
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]any{"items": members})
}

func (c *HTTPController) UpdateMemberRoles(ctx router.Context) error {
	msg := UpdateMemberRolesMessage{}
	if err := c.bind(ctx, &msg); err != nil {
		return c.fail(ctx, err)
	}

	member, err := c.orgs.UpdateMemberRoles(ctx.Context(), identityOf(ctx), ctx.Param("id"), ctx.Param("user_id"), msg)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, member)
}

func (c *HTTPController) InviteMember(ctx router.Context) error {
	msg := InviteMemberMessage{}
	if err := c.bind(ctx, &msg); err != nil {
		return c.fail(ctx, err)
	}

	if err := c.orgs.InviteMember(ctx.Context(), identityOf(ctx), ctx.Param("id"), msg); err != nil {
		return c.fail(ctx, err)
	}
	return ctx.NoContent(http.StatusAccepted)
}

func (c *HTTPController) AcceptInvite(ctx router.Context) error {
	msg := AcceptInviteMessage{}
	if err := c.bind(ctx, &msg); err != nil {
		return c.fail(ctx, err)
	}

	member, err := c.orgs.AcceptInvite(ctx.Context(), identityOf(ctx), msg)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, member)
}

func (c *HTTPController) ListProjects(ctx router.Context) error {
	page, err := c.projects.ListProjects(ctx.Context(), identityOf(ctx), ctx.Param("id"), pageOf(ctx))
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, page)
}

func (c *HTTPController) CreateProject(ctx router.Context) error {
	msg := ProjectMessage{}
	if err := c.bind(ctx, &msg); err != nil {
		return c.fail(ctx, err)
	}

	project, err := c.projects.CreateProject(ctx.Context(), identityOf(ctx), ctx.Param("id"), msg)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, project)
}

func (c *HTTPController) GetProject(ctx router.Context) error {
	project, err := c.projects.GetProject(ctx.Context(), identityOf(ctx), ctx.Param("id"))
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, project)
}

func (c *HTTPController) UpdateProject(ctx router.Context) error {
	msg := ProjectMessage{}
	if err := c.bind(ctx, &msg); err != nil {
		return c.fail(ctx, err)
	}

	project, err := c.projects.UpdateProject(ctx.Context(), identityOf(ctx), ctx.Param("id"), msg)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, project)
}

func (c *HTTPController) AddProjectMember(ctx router.Context) error {
	msg := AddProjectMemberMessage{}
	if err := c.bind(ctx, &msg); err != nil {
		return c.fail(ctx, err)
	}

	member, err := c.projects.AddProjectMember(ctx.Context(), identityOf(ctx), ctx.Param("id"), msg)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, member)
}

func (c *HTTPController) ListDeliverables(ctx router.Context) error {
	page, err := c.projects.ListDeliverables(ctx.Context(), identityOf(ctx), ctx.Param("id"), pageOf(ctx))
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, page)
}

func (c *HTTPController) CreateDeliverable(ctx router.Context) error {
	msg := DeliverableMessage{}
	if err := c.bind(ctx, &msg); err != nil {
		return c.fail(ctx, err)
	}

	deliverable, err := c.projects.CreateDeliverable(ctx.Context(), identityOf(ctx), ctx.Param("id"), msg)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, deliverable)
}

func (c *HTTPController) CompleteDeliverable(ctx router.Context) error {
	deliverable, err := c.projects.CompleteDeliverable(ctx.Context(), identityOf(ctx), ctx.Param("id"), ctx.Param("deliverable_id"))
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, deliverable)
}

func (c *HTTPController) bind(ctx router.Context, dst any) error {
	if err := ctx.Bind(dst); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed request body").
			WithTextCode(TextCodeInvalidArgument).
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}

func (c *HTTPController) fail(ctx router.Context, err error) error {
	if HTTPStatus(err) >= http.StatusInternalServerError {
		c.Logger.Error("request %s failed: %v", ctx.Path(), err)
	}
	return c.ErrorHandler(ctx, err)
}

func identityOf(ctx router.Context) *RequestIdentity {
	identity, _ := IdentityFromRouter(ctx)
	return identity
}

func pageOf(ctx router.Context) Page {
	return Page{
		Number: ctx.QueryInt("page", 1),
		Size:   ctx.QueryInt("size", DefaultPageSize),
	}.Normalize()
}
