package store

import (
	"context"
	"errors"
	"time"

	"github.com/sprintdeck/sprintdeck/internal/models"
)

// Sentinel errors returned by Store implementations. Handlers map these to
// HTTP status codes.
var (
	ErrNotFound            = errors.New("not found")
	ErrRetrospectiveExists = errors.New("retrospective already exists for sprint")
	ErrAssociationExists   = errors.New("task already associated with sprint")
	ErrMembershipExists    = errors.New("user already a member of team")
)

// TaskListFilter specifies filters for listing tasks.
type TaskListFilter struct {
	TeamID     string
	Status     models.TaskStatus
	Priority   models.TaskPriority
	Type       models.TaskType
	AssigneeID string
}

// Store defines the persistence interface for sprintdeck.
type Store interface {
	// Organizations
	CreateOrganization(ctx context.Context, org *models.Organization) error
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	ListOrganizations(ctx context.Context) ([]*models.Organization, error)

	// Teams
	CreateTeam(ctx context.Context, team *models.Team) error
	GetTeam(ctx context.Context, id string) (*models.Team, error)
	ListTeams(ctx context.Context, organizationID string) ([]*models.Team, error)
	AddTeamMember(ctx context.Context, teamID, userID string) error
	ListTeamMembers(ctx context.Context, teamID string) ([]*models.TeamMember, error)
	ListTeamMembersForTeams(ctx context.Context, teamIDs []string) ([]*models.TeamMember, error)

	// User profiles
	UpsertUserProfile(ctx context.Context, profile *models.UserProfile) error
	GetUserProfiles(ctx context.Context, userIDs []string) (map[string]*models.UserProfile, error)

	// Tasks
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, filter TaskListFilter) ([]*models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id string) error

	// Sprints
	CreateSprint(ctx context.Context, sprint *models.Sprint) error
	GetSprint(ctx context.Context, id string) (*models.Sprint, error)
	ListSprints(ctx context.Context, teamID string) ([]*models.Sprint, error)
	ListSprintsCreatedSince(ctx context.Context, teamIDs []string, since time.Time) ([]*models.Sprint, error)
	UpdateSprint(ctx context.Context, sprint *models.Sprint) error

	// Sprint-task associations
	AddTaskToSprint(ctx context.Context, sprintID, taskID string) (*models.SprintTask, error)
	ListSprintTasks(ctx context.Context, sprintID string) ([]*models.Task, error)
	ListTasksForSprints(ctx context.Context, sprintIDs []string) (map[string][]*models.Task, error)

	// Retrospectives
	CreateRetrospective(ctx context.Context, retro *models.Retrospective) error
	GetRetrospectiveBySprint(ctx context.Context, sprintID string) (*models.Retrospective, error)

	// Epics and labels
	CreateEpic(ctx context.Context, epic *models.Epic) error
	ListEpics(ctx context.Context, teamID string) ([]*models.Epic, error)
	CreateLabel(ctx context.Context, label *models.Label) error
	ListLabels(ctx context.Context, teamID string) ([]*models.Label, error)

	// Sessions
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
