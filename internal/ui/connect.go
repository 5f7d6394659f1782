package ui

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sshfwd/sshfwd/internal/history"
)

// ErrConnectCancelled is returned by RunConnectPrompt when the user backs
// out of the destination prompt without picking one.
var ErrConnectCancelled = errors.New("connect prompt cancelled")

// connectPrompt is the small "type or pick a destination" screen shown when
// sshfwd is launched without one, suggesting recently used [user@]host
// strings the same way the teacher suggested recently used host aliases.
type connectPrompt struct {
	input       textinput.Model
	suggestions []string
	selected    int

	result    string
	confirmed bool
	cancelled bool
}

func newConnectPrompt(suggestions []string) connectPrompt {
	input := textinput.New()
	input.Placeholder = "user@host"
	input.Focus()
	input.CharLimit = 256
	input.Width = 40
	return connectPrompt{input: input, suggestions: suggestions, selected: -1}
}

func (c connectPrompt) Init() tea.Cmd {
	return textinput.Blink
}

func (c connectPrompt) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			c.cancelled = true
			return c, tea.Quit
		case tea.KeyEnter:
			dest := strings.TrimSpace(c.input.Value())
			if dest == "" {
				return c, nil
			}
			c.result = dest
			c.confirmed = true
			return c, tea.Quit
		case tea.KeyUp:
			if len(c.suggestions) == 0 {
				return c, nil
			}
			if c.selected < 0 {
				c.selected = len(c.suggestions) - 1
			} else {
				c.selected--
				if c.selected < 0 {
					c.selected = len(c.suggestions) - 1
				}
			}
			c.input.SetValue(c.suggestions[c.selected])
			c.input.CursorEnd()
			return c, nil
		case tea.KeyDown:
			if len(c.suggestions) == 0 {
				return c, nil
			}
			c.selected = (c.selected + 1) % len(c.suggestions)
			c.input.SetValue(c.suggestions[c.selected])
			c.input.CursorEnd()
			return c, nil
		}
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return c, cmd
}

func (c connectPrompt) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "connect to: %s\n", c.input.View())
	if len(c.suggestions) > 0 {
		b.WriteString("\nrecent:\n")
		for i, s := range c.suggestions {
			cursor := "  "
			if i == c.selected {
				cursor = "> "
			}
			fmt.Fprintf(&b, "%s%s\n", cursor, s)
		}
	}
	b.WriteString("\nenter to connect, up/down to browse, esc to cancel")
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accentActive).
		Padding(1, 2).
		Render(strings.TrimRight(b.String(), "\n"))
}

// RunConnectPrompt shows the destination prompt, seeded with the most
// recently used destinations first, and returns the one the user picked or
// typed. It returns ErrConnectCancelled if the user backs out.
func RunConnectPrompt() (string, error) {
	last, _ := history.LastUsed()
	suggestions := recentDestinations(last)

	p := tea.NewProgram(newConnectPrompt(suggestions))
	final, err := p.Run()
	if err != nil {
		return "", err
	}
	cp := final.(connectPrompt)
	if cp.cancelled || !cp.confirmed {
		return "", ErrConnectCancelled
	}
	return cp.result, nil
}

// recentDestinations sorts the destinations recorded in history by most
// recently touched first, then alphabetically for a stable tiebreak.
func recentDestinations(lastUsed map[string]int64) []string {
	out := make([]string, 0, len(lastUsed))
	for dest := range lastUsed {
		out = append(out, dest)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := lastUsed[out[i]], lastUsed[out[j]]
		if ti != tj {
			return ti > tj
		}
		return out[i] < out[j]
	})
	return out
}
