package prompt

import "github.com/manifoldco/promptui"

// Username prompts for a login name, pre-filled with defaultValue.
func Username(defaultValue string) (string, error) {
	prompt := promptui.Prompt{
		Label:    "Username",
		Default:  defaultValue,
		Validate: ValidateUsername,
	}

	result, err := prompt.Run()
	return result, wrapError(err)
}

// Line reads one free-form line, used by the interactive shell.
func Line(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Templates: &promptui.PromptTemplates{
			Prompt:  "{{ . }} ",
			Valid:   "{{ . }} ",
			Invalid: "{{ . }} ",
			Success: "{{ . }} ",
		},
	}

	result, err := prompt.Run()
	return result, wrapError(err)
}
