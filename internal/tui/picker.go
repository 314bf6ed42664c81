package tui

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/csai/ctf-client/internal/challenges"
)

var ErrNoInstanced = errors.New("no instanced challenges")

// PickChallenge asks the user to choose one of the instanced challenges.
func PickChallenge(list []challenges.Challenge, now time.Time) (int, error) {
	opts := pickerOptions(list, now)
	if len(opts) == 0 {
		return 0, ErrNoInstanced
	}
	var id int
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[int]().
			Title("Which challenge?").
			Options(opts...).
			Value(&id),
	)).WithTheme(huh.ThemeCatppuccin())
	if err := form.Run(); err != nil {
		return 0, err
	}
	return id, nil
}

func pickerOptions(list []challenges.Challenge, now time.Time) []huh.Option[int] {
	opts := make([]huh.Option[int], 0, len(list))
	for _, c := range list {
		if !c.Instanced {
			continue
		}
		label := fmt.Sprintf("%s [%s]", c.Name, c.Category)
		if badge := Badge(c, now); badge != "" {
			label += "  " + badge
		}
		opts = append(opts, huh.NewOption(label, c.ID))
	}
	return opts
}
