// Package wizard provides the interactive component-selection flow used by
// the install command when no components are named on the command line.
package wizard

import (
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/huh"

	"github.com/stackwise-dev/stackwise/internal/manifest"
	"github.com/stackwise-dev/stackwise/internal/messages"
)

// ErrAborted reports that the user cancelled the selection.
var ErrAborted = errors.New(messages.WizardAborted)

// runFormFunc runs a huh form; tests replace it to drive the wizard headless.
var runFormFunc = func(form *huh.Form) error { return form.Run() }

// SelectComponents prompts for the components to install. Required components
// are always included; recommended ones start preselected. The confirmation
// step names the install root so the user sees where files will land.
func SelectComponents(manifests manifest.Set, root string) ([]string, error) {
	if len(manifests) == 0 {
		return nil, errors.New(messages.InstallNothingSelected)
	}

	ids := manifests.IDs()
	sort.Strings(ids)

	var optional []huh.Option[string]
	var required []string
	var selected []string
	for _, id := range ids {
		m := manifests[id]
		if m.Required {
			required = append(required, id)
			continue
		}
		optional = append(optional, huh.NewOption(optionLabel(m), id).Selected(m.Recommended))
		if m.Recommended {
			selected = append(selected, id)
		}
	}

	if len(optional) > 0 {
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewMultiSelect[string]().
					Title(messages.WizardSelectTitle).
					Filterable(false).
					Options(optional...).
					Value(&selected),
			),
		)
		if err := runFormFunc(form); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil, ErrAborted
			}
			return nil, err
		}
	}

	chosen := append(append([]string(nil), required...), selected...)
	sort.Strings(chosen)
	if len(chosen) == 0 {
		return nil, errors.New(messages.InstallNothingSelected)
	}

	confirmed := true
	confirm := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf(messages.WizardConfirmFmt, len(chosen), root)).
				Value(&confirmed),
		),
	)
	if err := runFormFunc(confirm); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, ErrAborted
		}
		return nil, err
	}
	if !confirmed {
		return nil, ErrAborted
	}
	return chosen, nil
}

func optionLabel(m *manifest.Manifest) string {
	if m.Description == "" {
		return m.ID
	}
	return fmt.Sprintf("%s (%s)", m.ID, m.Description)
}
