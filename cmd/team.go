package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprintdeck/sprintdeck/internal/models"
	"github.com/sprintdeck/sprintdeck/internal/output"
	"github.com/sprintdeck/sprintdeck/internal/store"
)

var (
	teamOrg        string
	teamDesc       string
	memberName     string
)

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Manage teams and members",
	RunE: func(cmd *cobra.Command, args []string) error {
		return teamListRun()
	},
}

var teamAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a new team",
	Long:  "Add a new team. The organization is created if it does not exist yet.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return teamAddRun(args[0])
	},
}

var teamListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List teams",
	RunE: func(cmd *cobra.Command, args []string) error {
		return teamListRun()
	},
}

var teamMembersCmd = &cobra.Command{
	Use:   "members <team>",
	Short: "List team members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return teamMembersRun(args[0])
	},
}

var teamJoinCmd = &cobra.Command{
	Use:   "join <team> <user-id>",
	Short: "Add a member to a team",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return teamJoinRun(args[0], args[1])
	},
}

func init() {
	teamAddCmd.Flags().StringVar(&teamOrg, "org", "default", "Organization name")
	teamAddCmd.Flags().StringVar(&teamDesc, "desc", "", "Team description")

	teamJoinCmd.Flags().StringVar(&memberName, "name", "", "Display name for the member's profile")

	teamCmd.AddCommand(teamAddCmd)
	teamCmd.AddCommand(teamListCmd)
	teamCmd.AddCommand(teamMembersCmd)
	teamCmd.AddCommand(teamJoinCmd)
	rootCmd.AddCommand(teamCmd)
}

func teamAddRun(name string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if dryRun {
		ui.DryRunMsg("Would add team %s to organization %s", name, teamOrg)
		return nil
	}

	org, err := findOrCreateOrganization(ctx, s, teamOrg)
	if err != nil {
		return err
	}

	team := &models.Team{
		OrganizationID: org.ID,
		Name:           name,
		Description:    teamDesc,
	}
	if err := s.CreateTeam(ctx, team); err != nil {
		return fmt.Errorf("create team: %w", err)
	}

	ui.Success("Created team %s in %s", output.Cyan(name), org.Name)
	return nil
}

func teamListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	teams, err := s.ListTeams(ctx, "")
	if err != nil {
		return err
	}
	if len(teams) == 0 {
		ui.Info("No teams yet. Use 'sprintdeck team add <name>' to get started.")
		return nil
	}

	orgNames := make(map[string]string)

	table := ui.Table([]string{"ID", "Team", "Organization", "Description"})
	for _, team := range teams {
		orgName := orgNames[team.OrganizationID]
		if orgName == "" {
			if org, err := s.GetOrganization(ctx, team.OrganizationID); err == nil {
				orgName = org.Name
				orgNames[team.OrganizationID] = orgName
			}
		}
		_ = table.Append([]string{shortID(team.ID), output.Cyan(team.Name), orgName, team.Description})
	}
	_ = table.Render()
	return nil
}

func teamMembersRun(teamRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	team, err := resolveTeam(ctx, s, teamRef)
	if err != nil {
		return err
	}

	members, err := s.ListTeamMembers(ctx, team.ID)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		ui.Info("No members in %s. Use 'sprintdeck team join %s <user-id>'.", team.Name, team.Name)
		return nil
	}

	userIDs := make([]string, len(members))
	for i, m := range members {
		userIDs[i] = m.UserID
	}
	profiles, err := s.GetUserProfiles(ctx, userIDs)
	if err != nil {
		return err
	}

	table := ui.Table([]string{"User", "Name", "Joined"})
	for _, m := range members {
		name := ""
		if p, ok := profiles[m.UserID]; ok {
			name = p.DisplayName
		}
		_ = table.Append([]string{m.UserID, name, m.JoinedAt.Format("2006-01-02")})
	}
	_ = table.Render()
	return nil
}

func teamJoinRun(teamRef, userID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	team, err := resolveTeam(ctx, s, teamRef)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would add %s to team %s", userID, team.Name)
		return nil
	}

	if memberName != "" {
		profile := &models.UserProfile{UserID: userID, DisplayName: memberName}
		if err := s.UpsertUserProfile(ctx, profile); err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
	}

	if err := s.AddTeamMember(ctx, team.ID, userID); err != nil {
		if errors.Is(err, store.ErrMembershipExists) {
			ui.Warning("%s is already a member of %s", userID, team.Name)
			return nil
		}
		return fmt.Errorf("add member: %w", err)
	}

	ui.Success("Added %s to %s", userID, output.Cyan(team.Name))
	return nil
}

// resolveTeam finds a team by name first, then by ID or unique prefix.
func resolveTeam(ctx context.Context, s store.Store, ref string) (*models.Team, error) {
	teams, err := s.ListTeams(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, team := range teams {
		if team.Name == ref {
			return team, nil
		}
	}

	upper := strings.ToUpper(ref)
	var matches []*models.Team
	for _, team := range teams {
		if strings.HasPrefix(team.ID, upper) {
			matches = append(matches, team)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, fmt.Errorf("team not found: %s", ref)
	default:
		return nil, fmt.Errorf("ambiguous team %s: matches %d teams", ref, len(matches))
	}
}

// findOrCreateOrganization returns the named organization, creating it if missing.
func findOrCreateOrganization(ctx context.Context, s store.Store, name string) (*models.Organization, error) {
	orgs, err := s.ListOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	for _, org := range orgs {
		if org.Name == name {
			return org, nil
		}
	}
	org := &models.Organization{Name: name}
	if err := s.CreateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}
	return org, nil
}
