package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/mila-iqia/milatools/internal/local"
	"github.com/mila-iqia/milatools/internal/platform"
)

// prompter asks the user for input. The terminal implementation uses huh;
// tests substitute canned answers.
type prompter interface {
	Input(title string, validate func(string) error) (string, error)
	Confirm(title string) (bool, error)
}

// huhPrompter renders prompts as huh forms
type huhPrompter struct{}

func (huhPrompter) Input(title string, validate func(string) error) (string, error) {
	var value string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(headerStyle.Render(title)).
				Validate(validate).
				Value(&value),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func (huhPrompter) Confirm(title string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative(T("answer_yes")).
				Negative(T("answer_no")).
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}

// searchURL returns base when there are no terms, otherwise the search page
// with the terms escaped and joined by '+'.
func searchURL(base, search string, terms []string) string {
	if len(terms) == 0 {
		return base
	}
	escaped := make([]string, len(terms))
	for i, term := range terms {
		escaped[i] = url.QueryEscape(term)
	}
	return fmt.Sprintf(search, strings.Join(escaped, "+"))
}

// Run opens the page in the default browser
func (c *OpenCommand) Run(ctx context.Context) error {
	target := searchURL(c.BaseURL, c.SearchURL, c.Terms)
	name, args, err := platform.OpenCommand(target)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, infoStyle.Render(T("opening_url", target)))
	_, err = c.runner.Run(ctx, local.Cmd(name, args...), local.Options{Hide: true})
	return err
}
