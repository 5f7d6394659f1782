package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"

	"github.com/sshfwd/sshfwd/internal/model"
)

// renderModal renders the custom-port entry prompt. model.ModalInput.Buffer
// is the single source of truth for the typed digits (appstate owns every
// mutation); this builds a fresh textinput.Model each frame purely for its
// cursor and placeholder rendering rather than routing keystrokes through
// textinput's own internal state machine.
func renderModal(modal *model.ModalInput) string {
	input := textinput.New()
	input.Placeholder = strconv.Itoa(int(modal.RemotePort))
	input.SetValue(modal.Buffer)
	input.CursorEnd()
	input.Focus()
	input.PromptStyle = lipgloss.NewStyle().Bold(true)
	input.Width = 10

	title := fmt.Sprintf("forward remote port %d to local port:", modal.RemotePort)
	body := title + "\n" + input.View()
	if modal.ErrorMessage != "" {
		body += "\n" + lipgloss.NewStyle().Foreground(accentWarn).Render(modal.ErrorMessage)
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accentStale).
		Padding(0, 1).
		Render(body)
}
