package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/raphaelgruber/feelfree-go/internal/onboarding"
	"github.com/raphaelgruber/feelfree-go/internal/service"
	"github.com/spf13/cobra"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Answer a few questions so your companion knows you",
	Long: `Walk through the onboarding questionnaire.

Answers are checked as you go. Type 'back' to revisit the previous
question. Nothing is saved until the last answer is in.`,
	Args: cobra.NoArgs,
	RunE: runOnboard,
}

const backCommand = "back"

func runOnboard(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, _, err := authedClient(ctx)
	if err != nil {
		return err
	}

	profile, err := c.Profile(ctx)
	if err != nil {
		return userError(err)
	}
	if profile.OnboardingCompleted {
		fmt.Println("You're already set up. Run 'feelfree chat' to start talking.")
		return nil
	}

	answers, err := runQuestionnaire(newPrompter())
	if err != nil {
		return err
	}

	profile, err = c.CompleteOnboarding(ctx, answers)
	if errors.Is(err, service.ErrOnboardingDone) {
		fmt.Println("You're already set up. Run 'feelfree chat' to start talking.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("save answers: %w", err)
	}
	logger.Info("onboarding completed", "user_id", profile.ID)
	fmt.Printf("All set, %s! Run 'feelfree chat' to start talking.\n", profile.Preferences.Name)
	return nil
}

// runQuestionnaire asks every step in order until all are answered.
func runQuestionnaire(p *prompter) (onboarding.Answers, error) {
	q := onboarding.New()
	theme := defaultTheme
	for !q.Done() {
		step, _ := q.Current()
		fmt.Fprintf(p.out, "\n%s %s\n",
			theme.hintStyle().Render(fmt.Sprintf("[%d/%d]", q.Index()+1, onboarding.Total())),
			theme.statusStyle().Render(q.Question()))
		for i, opt := range step.Options {
			fmt.Fprintf(p.out, "  %d. %s\n", i+1, opt.Label)
		}

		label := "> "
		if step.Placeholder != "" {
			label = theme.hintStyle().Render(step.Placeholder) + "\n> "
		}
		input, err := p.line(label)
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(input, backCommand) {
			q.Back()
			continue
		}
		if err := q.Answer(selectValue(step, input)); err != nil {
			var ae *onboarding.AnswerError
			if errors.As(err, &ae) {
				fmt.Fprintln(p.out, theme.errorStyle().Render(ae.Message))
				continue
			}
			return nil, err
		}
	}
	return q.Answers(), nil
}

// selectValue maps a 1-based option number or label to its value.
// Other steps take the input as typed.
func selectValue(step onboarding.Step, input string) string {
	if step.Kind != onboarding.KindSelect {
		return input
	}
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(step.Options) {
		return step.Options[n-1].Value
	}
	for _, opt := range step.Options {
		if strings.EqualFold(input, opt.Label) || strings.EqualFold(input, opt.Value) {
			return opt.Value
		}
	}
	return input
}
