package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sprintdeck/sprintdeck/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single connection
	// serializes all DB access through Go's connection pool, preventing
	// "database is locked" errors from concurrent HTTP requests.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// isUniqueViolation reports whether err is a sqlite UNIQUE/PK constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Check if already applied
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Organizations ---

func (s *SQLiteStore) CreateOrganization(ctx context.Context, org *models.Organization) error {
	if org.ID == "" {
		org.ID = newULID()
	}
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		org.ID, org.Name, org.CreatedAt, org.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	org := &models.Organization{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM organizations WHERE id = ?`, id,
	).Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("organization %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return org, nil
}

func (s *SQLiteStore) ListOrganizations(ctx context.Context) ([]*models.Organization, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM organizations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org := &models.Organization{}
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// --- Teams ---

func (s *SQLiteStore) CreateTeam(ctx context.Context, team *models.Team) error {
	if team.ID == "" {
		team.ID = newULID()
	}
	now := time.Now().UTC()
	team.CreatedAt = now
	team.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO teams (id, organization_id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		team.ID, team.OrganizationID, team.Name, team.Description, team.CreatedAt, team.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create team: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	team := &models.Team{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, organization_id, name, description, created_at, updated_at
		FROM teams WHERE id = ?`, id,
	).Scan(&team.ID, &team.OrganizationID, &team.Name, &team.Description, &team.CreatedAt, &team.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("team %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	}
	return team, nil
}

func (s *SQLiteStore) ListTeams(ctx context.Context, organizationID string) ([]*models.Team, error) {
	query := `SELECT id, organization_id, name, description, created_at, updated_at FROM teams`
	var args []any
	if organizationID != "" {
		query += ` WHERE organization_id = ?`
		args = append(args, organizationID)
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var teams []*models.Team
	for rows.Next() {
		team := &models.Team{}
		if err := rows.Scan(&team.ID, &team.OrganizationID, &team.Name, &team.Description, &team.CreatedAt, &team.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

func (s *SQLiteStore) AddTeamMember(ctx context.Context, teamID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO team_members (team_id, user_id, joined_at) VALUES (?, ?, ?)`,
		teamID, userID, time.Now().UTC(),
	)
	if isUniqueViolation(err) {
		return ErrMembershipExists
	}
	if err != nil {
		return fmt.Errorf("add team member: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListTeamMembers(ctx context.Context, teamID string) ([]*models.TeamMember, error) {
	return s.ListTeamMembersForTeams(ctx, []string{teamID})
}

func (s *SQLiteStore) ListTeamMembersForTeams(ctx context.Context, teamIDs []string) ([]*models.TeamMember, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	query := `SELECT team_id, user_id, joined_at FROM team_members WHERE team_id IN (` +
		placeholders(len(teamIDs)) + `) ORDER BY joined_at`

	rows, err := s.db.QueryContext(ctx, query, toAnySlice(teamIDs)...)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	defer rows.Close()

	var members []*models.TeamMember
	for rows.Next() {
		m := &models.TeamMember{}
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// --- User profiles ---

func (s *SQLiteStore) UpsertUserProfile(ctx context.Context, profile *models.UserProfile) error {
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, display_name, avatar_url, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET display_name = excluded.display_name, avatar_url = excluded.avatar_url`,
		profile.UserID, profile.DisplayName, profile.AvatarURL, profile.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert user profile: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUserProfiles(ctx context.Context, userIDs []string) (map[string]*models.UserProfile, error) {
	profiles := make(map[string]*models.UserProfile)
	if len(userIDs) == 0 {
		return profiles, nil
	}

	query := `SELECT user_id, display_name, avatar_url, created_at FROM user_profiles WHERE user_id IN (` +
		placeholders(len(userIDs)) + `)`

	rows, err := s.db.QueryContext(ctx, query, toAnySlice(userIDs)...)
	if err != nil {
		return nil, fmt.Errorf("get user profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p := &models.UserProfile{}
		if err := rows.Scan(&p.UserID, &p.DisplayName, &p.AvatarURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user profile: %w", err)
		}
		profiles[p.UserID] = p
	}
	return profiles, rows.Err()
}

// --- Tasks ---

const taskColumns = `id, team_id, title, description, type, status, priority, story_points, assignee_id, due_date, created_at, updated_at`

func scanTask(scanner interface{ Scan(...any) error }) (*models.Task, error) {
	task := &models.Task{}
	var points sql.NullFloat64
	var assignee sql.NullString
	var due sql.NullTime
	err := scanner.Scan(&task.ID, &task.TeamID, &task.Title, &task.Description,
		&task.Type, &task.Status, &task.Priority, &points, &assignee, &due,
		&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if points.Valid {
		task.StoryPoints = &points.Float64
	}
	if assignee.Valid {
		task.AssigneeID = &assignee.String
	}
	if due.Valid {
		task.DueDate = &due.Time
	}
	return task, nil
}

func (s *SQLiteStore) CreateTask(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = newULID()
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.TeamID, task.Title, task.Description, task.Type, task.Status,
		task.Priority, task.StoryPoints, task.AssigneeID, task.DueDate,
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (s *SQLiteStore) ListTasks(ctx context.Context, filter TaskListFilter) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any

	if filter.TeamID != "" {
		query += ` AND team_id = ?`
		args = append(args, filter.TeamID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		query += ` AND priority = ?`
		args = append(args, filter.Priority)
	}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, filter.Type)
	}
	if filter.AssigneeID != "" {
		query += ` AND assignee_id = ?`
		args = append(args, filter.AssigneeID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, type = ?, status = ?, priority = ?,
		story_points = ?, assignee_id = ?, due_date = ?, updated_at = ? WHERE id = ?`,
		task.Title, task.Description, task.Type, task.Status, task.Priority,
		task.StoryPoints, task.AssigneeID, task.DueDate, task.UpdatedAt, task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", task.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// --- Sprints ---

const sprintColumns = `id, team_id, name, goal, start_date, end_date, status, created_at, updated_at`

func scanSprint(scanner interface{ Scan(...any) error }) (*models.Sprint, error) {
	sp := &models.Sprint{}
	err := scanner.Scan(&sp.ID, &sp.TeamID, &sp.Name, &sp.Goal, &sp.StartDate,
		&sp.EndDate, &sp.Status, &sp.CreatedAt, &sp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *SQLiteStore) CreateSprint(ctx context.Context, sprint *models.Sprint) error {
	if sprint.ID == "" {
		sprint.ID = newULID()
	}
	now := time.Now().UTC()
	sprint.CreatedAt = now
	sprint.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sprints (`+sprintColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sprint.ID, sprint.TeamID, sprint.Name, sprint.Goal, sprint.StartDate,
		sprint.EndDate, sprint.Status, sprint.CreatedAt, sprint.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create sprint: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSprint(ctx context.Context, id string) (*models.Sprint, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE id = ?`, id)
	sprint, err := scanSprint(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sprint %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get sprint: %w", err)
	}
	return sprint, nil
}

func (s *SQLiteStore) ListSprints(ctx context.Context, teamID string) ([]*models.Sprint, error) {
	query := `SELECT ` + sprintColumns + ` FROM sprints`
	var args []any
	if teamID != "" {
		query += ` WHERE team_id = ?`
		args = append(args, teamID)
	}
	query += ` ORDER BY start_date DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sprints: %w", err)
	}
	defer rows.Close()

	var sprints []*models.Sprint
	for rows.Next() {
		sprint, err := scanSprint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sprint: %w", err)
		}
		sprints = append(sprints, sprint)
	}
	return sprints, rows.Err()
}

func (s *SQLiteStore) ListSprintsCreatedSince(ctx context.Context, teamIDs []string, since time.Time) ([]*models.Sprint, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + sprintColumns + ` FROM sprints WHERE team_id IN (` +
		placeholders(len(teamIDs)) + `) AND created_at >= ? ORDER BY start_date`

	args := toAnySlice(teamIDs)
	args = append(args, since)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sprints since: %w", err)
	}
	defer rows.Close()

	var sprints []*models.Sprint
	for rows.Next() {
		sprint, err := scanSprint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sprint: %w", err)
		}
		sprints = append(sprints, sprint)
	}
	return sprints, rows.Err()
}

func (s *SQLiteStore) UpdateSprint(ctx context.Context, sprint *models.Sprint) error {
	sprint.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE sprints SET name = ?, goal = ?, start_date = ?, end_date = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		sprint.Name, sprint.Goal, sprint.StartDate, sprint.EndDate, sprint.Status,
		sprint.UpdatedAt, sprint.ID,
	)
	if err != nil {
		return fmt.Errorf("update sprint: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sprint %s: %w", sprint.ID, ErrNotFound)
	}
	return nil
}

// --- Sprint-task associations ---

func (s *SQLiteStore) AddTaskToSprint(ctx context.Context, sprintID, taskID string) (*models.SprintTask, error) {
	st := &models.SprintTask{
		SprintID: sprintID,
		TaskID:   taskID,
		AddedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sprint_tasks (sprint_id, task_id, added_at) VALUES (?, ?, ?)`,
		st.SprintID, st.TaskID, st.AddedAt,
	)
	if isUniqueViolation(err) {
		return nil, ErrAssociationExists
	}
	if err != nil {
		return nil, fmt.Errorf("add task to sprint: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) ListSprintTasks(ctx context.Context, sprintID string) ([]*models.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.team_id, t.title, t.description, t.type, t.status, t.priority,
		t.story_points, t.assignee_id, t.due_date, t.created_at, t.updated_at
		FROM tasks t
		JOIN sprint_tasks st ON st.task_id = t.id
		WHERE st.sprint_id = ?
		ORDER BY st.added_at`, sprintID)
	if err != nil {
		return nil, fmt.Errorf("list sprint tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sprint task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (s *SQLiteStore) ListTasksForSprints(ctx context.Context, sprintIDs []string) (map[string][]*models.Task, error) {
	bySprint := make(map[string][]*models.Task)
	if len(sprintIDs) == 0 {
		return bySprint, nil
	}

	query := `SELECT st.sprint_id, t.id, t.team_id, t.title, t.description, t.type, t.status, t.priority,
		t.story_points, t.assignee_id, t.due_date, t.created_at, t.updated_at
		FROM tasks t
		JOIN sprint_tasks st ON st.task_id = t.id
		WHERE st.sprint_id IN (` + placeholders(len(sprintIDs)) + `)
		ORDER BY st.added_at`

	rows, err := s.db.QueryContext(ctx, query, toAnySlice(sprintIDs)...)
	if err != nil {
		return nil, fmt.Errorf("list tasks for sprints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sprintID string
		task := &models.Task{}
		var points sql.NullFloat64
		var assignee sql.NullString
		var due sql.NullTime
		err := rows.Scan(&sprintID, &task.ID, &task.TeamID, &task.Title, &task.Description,
			&task.Type, &task.Status, &task.Priority, &points, &assignee, &due,
			&task.CreatedAt, &task.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan sprint task: %w", err)
		}
		if points.Valid {
			task.StoryPoints = &points.Float64
		}
		if assignee.Valid {
			task.AssigneeID = &assignee.String
		}
		if due.Valid {
			task.DueDate = &due.Time
		}
		bySprint[sprintID] = append(bySprint[sprintID], task)
	}
	return bySprint, rows.Err()
}

// --- Retrospectives ---

// CreateRetrospective inserts a retrospective row. The unique index on
// sprint_id makes the insert atomic: a concurrent duplicate loses the race
// and gets ErrRetrospectiveExists instead of a second row.
func (s *SQLiteStore) CreateRetrospective(ctx context.Context, retro *models.Retrospective) error {
	if retro.ID == "" {
		retro.ID = newULID()
	}
	retro.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO retrospectives (id, sprint_id, content, created_at) VALUES (?, ?, ?, ?)`,
		retro.ID, retro.SprintID, retro.Content, retro.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrRetrospectiveExists
	}
	if err != nil {
		return fmt.Errorf("create retrospective: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetRetrospectiveBySprint(ctx context.Context, sprintID string) (*models.Retrospective, error) {
	retro := &models.Retrospective{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, sprint_id, content, created_at FROM retrospectives WHERE sprint_id = ?`, sprintID,
	).Scan(&retro.ID, &retro.SprintID, &retro.Content, &retro.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("retrospective for sprint %s: %w", sprintID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get retrospective: %w", err)
	}
	return retro, nil
}

// --- Epics and labels ---

func (s *SQLiteStore) CreateEpic(ctx context.Context, epic *models.Epic) error {
	if epic.ID == "" {
		epic.ID = newULID()
	}
	epic.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO epics (id, team_id, name, created_at) VALUES (?, ?, ?, ?)`,
		epic.ID, epic.TeamID, epic.Name, epic.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create epic: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListEpics(ctx context.Context, teamID string) ([]*models.Epic, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, team_id, name, created_at FROM epics WHERE team_id = ? ORDER BY name`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list epics: %w", err)
	}
	defer rows.Close()

	var epics []*models.Epic
	for rows.Next() {
		e := &models.Epic{}
		if err := rows.Scan(&e.ID, &e.TeamID, &e.Name, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan epic: %w", err)
		}
		epics = append(epics, e)
	}
	return epics, rows.Err()
}

func (s *SQLiteStore) CreateLabel(ctx context.Context, label *models.Label) error {
	if label.ID == "" {
		label.ID = newULID()
	}
	label.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO labels (id, team_id, name, color, created_at) VALUES (?, ?, ?, ?, ?)`,
		label.ID, label.TeamID, label.Name, label.Color, label.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create label: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListLabels(ctx context.Context, teamID string) ([]*models.Label, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, team_id, name, color, created_at FROM labels WHERE team_id = ? ORDER BY name`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	defer rows.Close()

	var labels []*models.Label
	for rows.Next() {
		l := &models.Label{}
		if err := rows.Scan(&l.ID, &l.TeamID, &l.Name, &l.Color, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// --- Sessions ---

func (s *SQLiteStore) CreateSession(ctx context.Context, session *models.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		session.Token, session.UserID, session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, token string) (*models.Session, error) {
	session := &models.Session{}
	err := s.db.QueryRowContext(ctx,
		`SELECT token, user_id, created_at, expires_at FROM sessions WHERE token = ?`, token,
	).Scan(&session.Token, &session.UserID, &session.CreatedAt, &session.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// --- helpers ---

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toAnySlice(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
