package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alexanderramin/studygen/internal/cli/formatter"
	"github.com/alexanderramin/studygen/internal/domain"
	"github.com/alexanderramin/studygen/internal/validate"
	"github.com/alexanderramin/studygen/internal/workflow"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// studygenHuhTheme returns a huh theme using the Gruvbox palette.
func studygenHuhTheme() *huh.Theme {
	t := huh.ThemeBase()

	// Focused state: orange accent
	t.Focused.Title = lipgloss.NewStyle().Foreground(formatter.ColorHeader).Bold(true)
	t.Focused.SelectSelector = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(formatter.ColorGreen)
	t.Focused.UnselectedOption = lipgloss.NewStyle().Foreground(formatter.ColorFg)
	t.Focused.FocusedButton = lipgloss.NewStyle().Foreground(formatter.ColorFg).Background(formatter.ColorHeader).Padding(0, 1)
	t.Focused.BlurredButton = lipgloss.NewStyle().Foreground(formatter.ColorDim).Padding(0, 1)
	t.Focused.TextInput.Cursor = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.TextInput.Prompt = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.TextInput.Text = lipgloss.NewStyle().Foreground(formatter.ColorFg)
	t.Focused.TextInput.Placeholder = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Focused.Description = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Focused.ErrorMessage = lipgloss.NewStyle().Foreground(formatter.ColorRed)

	// Blurred state: dimmed
	t.Blurred.Title = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.SelectSelector = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.SelectedOption = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.UnselectedOption = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.TextInput.Prompt = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.TextInput.Text = lipgloss.NewStyle().Foreground(formatter.ColorDim)

	return t
}

func newForm(groups ...*huh.Group) *huh.Form {
	return huh.NewForm(groups...).WithTheme(studygenHuhTheme()).WithShowHelp(false)
}

// LoginInput is what the login command and form collect.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// wizardLogin creates the email/password form. Fields are checked as the
// user leaves them.
func wizardLogin(in *LoginInput) *huh.Form {
	return newForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(&in.Email).
				Validate(func(s string) error {
					return validate.Field(LoginInput{Email: strings.TrimSpace(s), Password: "-"}, "email")
				}),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&in.Password).
				Validate(func(s string) error {
					return validate.Field(LoginInput{Email: "a@b.c", Password: s}, "password")
				}),
		),
	)
}

// generationFields holds the raw form values for a generation request.
type generationFields struct {
	prompt     string
	difficulty string
	count      string
}

func (f *generationFields) params(fileRef string) (workflow.GenerationParams, error) {
	n, err := strconv.Atoi(strings.TrimSpace(f.count))
	if err != nil {
		return workflow.GenerationParams{}, fmt.Errorf("number of questions must be a number")
	}
	return workflow.GenerationParams{
		FileRef:      fileRef,
		Prompt:       strings.TrimSpace(f.prompt),
		Difficulty:   domain.Difficulty(f.difficulty),
		NumQuestions: n,
	}, nil
}

// wizardGenerate creates the topic/difficulty/count form.
func wizardGenerate(f *generationFields) *huh.Form {
	if f.difficulty == "" {
		f.difficulty = string(domain.DifficultyMedium)
	}
	if f.count == "" {
		f.count = "10"
	}
	return newForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Topic").
				Description("What should the questions focus on?").
				Value(&f.prompt).
				Validate(func(s string) error {
					return validate.Field(workflow.GenerationParams{Prompt: strings.TrimSpace(s)}, "prompt")
				}),
			huh.NewSelect[string]().
				Title("Difficulty").
				Options(
					huh.NewOption("Easy", string(domain.DifficultyEasy)),
					huh.NewOption("Medium", string(domain.DifficultyMedium)),
					huh.NewOption("Hard", string(domain.DifficultyHard)),
				).
				Value(&f.difficulty),
			huh.NewInput().
				Title("Questions").
				Value(&f.count).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil {
						return fmt.Errorf("enter a number")
					}
					return validate.Field(workflow.GenerationParams{NumQuestions: n}, "num_questions")
				}),
		),
	)
}

// wizardAnswer creates a single-question select form.
func wizardAnswer(q domain.Question, index, total int, result *string) *huh.Form {
	options := make([]huh.Option[string], 0, len(q.Options))
	for _, opt := range q.Options {
		options = append(options, huh.NewOption(opt, opt))
	}
	return newForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(q.Text).
				Description(fmt.Sprintf("Question %d of %d", index+1, total)).
				Options(options...).
				Value(result),
		),
	)
}

// wizardConfirm creates a yes/no form.
func wizardConfirm(title string, result *bool) *huh.Form {
	return newForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(result),
		),
	)
}
