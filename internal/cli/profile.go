package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/raphaelgruber/feelfree-go/internal/api"
	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/spf13/cobra"
)

var (
	profileFullName   string
	profileName       string
	profileAge        int
	profileOccupation string
	profileInterests  []string
	profileHobbies    []string
	profileTopics     []string
	profileStyle      string
	profileLanguage   string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or change your profile",
	Long: `Show your profile, or change parts of it with flags.

Only the fields you pass are changed.

Examples:
  feelfree profile
  feelfree profile --style formal --language english
  feelfree profile --interests "music,travel" --age 23`,
	Args: cobra.NoArgs,
	RunE: runProfile,
}

func init() {
	f := profileCmd.Flags()
	f.StringVar(&profileFullName, "full-name", "", "account display name")
	f.StringVar(&profileName, "name", "", "name your companion calls you")
	f.IntVar(&profileAge, "age", 0, "your age")
	f.StringVar(&profileOccupation, "work", "", "what keeps you busy")
	f.StringSliceVar(&profileInterests, "interests", nil, "comma separated interests")
	f.StringSliceVar(&profileHobbies, "hobbies", nil, "comma separated hobbies")
	f.StringSliceVar(&profileTopics, "topics", nil, "comma separated favorite topics")
	f.StringVar(&profileStyle, "style", "", "casual, formal or mixed")
	f.StringVar(&profileLanguage, "language", "", "english, hindi or hinglish")
}

func runProfile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, creds, err := authedClient(ctx)
	if err != nil {
		return err
	}

	update := profileUpdateFromFlags(cmd)
	var profile *models.Profile
	if update.FullName == nil && update.Preferences == nil {
		profile, err = c.Profile(ctx)
	} else {
		profile, err = c.UpdateProfile(ctx, update)
	}
	if err != nil {
		return userError(err)
	}
	printProfile(cmd.OutOrStdout(), creds.Email, profile)
	return nil
}

// profileUpdateFromFlags sets only the fields whose flags were passed.
func profileUpdateFromFlags(cmd *cobra.Command) api.ProfileUpdate {
	f := cmd.Flags()
	var u api.ProfileUpdate
	var p models.PreferencesUpdate

	if f.Changed("full-name") {
		u.FullName = &profileFullName
	}
	if f.Changed("name") {
		p.Name = &profileName
	}
	if f.Changed("age") {
		p.Age = &profileAge
	}
	if f.Changed("work") {
		p.Occupation = &profileOccupation
	}
	if f.Changed("interests") {
		p.Interests = profileInterests
	}
	if f.Changed("hobbies") {
		p.Hobbies = profileHobbies
	}
	if f.Changed("topics") {
		p.FavoriteTopics = profileTopics
	}
	if f.Changed("style") {
		style := models.CommunicationStyle(strings.ToLower(profileStyle))
		p.CommunicationStyle = &style
	}
	if f.Changed("language") {
		lang := models.LanguageMode(strings.ToLower(profileLanguage))
		p.Language = &lang
	}
	if !p.Empty() {
		u.Preferences = &p
	}
	return u
}

func printProfile(w io.Writer, email string, p *models.Profile) {
	fmt.Fprintf(w, "Email:        %s\n", email)
	if p.FullName != "" {
		fmt.Fprintf(w, "Full name:    %s\n", p.FullName)
	}
	if !p.OnboardingCompleted || p.Preferences == nil {
		fmt.Fprintln(w, "Onboarding:   not completed (run 'feelfree onboard')")
		return
	}
	prefs := p.Preferences.WithDefaults()
	fmt.Fprintf(w, "Name:         %s\n", prefs.Name)
	fmt.Fprintf(w, "Age:          %d (%s)\n", prefs.Age, prefs.Context.AgeGroup)
	fmt.Fprintf(w, "Work:         %s\n", prefs.Context.Occupation)
	fmt.Fprintf(w, "Interests:    %s\n", strings.Join(prefs.Context.Interests, ", "))
	fmt.Fprintf(w, "Hobbies:      %s\n", strings.Join(prefs.Context.Hobbies, ", "))
	fmt.Fprintf(w, "Topics:       %s\n", strings.Join(prefs.Context.FavoriteTopics, ", "))
	fmt.Fprintf(w, "Style:        %s\n", prefs.CommunicationStyle)
	fmt.Fprintf(w, "Language:     %s\n", prefs.Context.LanguagePreference)
	if !p.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "Updated:      %s\n", p.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
}
