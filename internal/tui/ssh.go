package tui

import (
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	bm "github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"

	tea "github.com/charmbracelet/bubbletea"
)

// SSHOptions configures the SSH screener. The host key is generated at
// HostKeyPath on first start. When AuthorizedKeysPath is set only the keys
// listed there may connect.
type SSHOptions struct {
	Addr               string
	HostKeyPath        string
	AuthorizedKeysPath string
}

func (o SSHOptions) serverOptions(analyses AnalysisQuerier) []ssh.Option {
	opts := []ssh.Option{
		wish.WithAddress(o.Addr),
		wish.WithHostKeyPath(o.HostKeyPath),
	}
	if o.AuthorizedKeysPath != "" {
		opts = append(opts, wish.WithAuthorizedKeys(o.AuthorizedKeysPath))
	}
	return append(opts, wish.WithMiddleware(
		bm.Middleware(sessionHandler(analyses)),
		activeterm.Middleware(),
		logging.Middleware(),
	))
}

// NewSSHServer serves the screener to every SSH session.
func NewSSHServer(opts SSHOptions, analyses AnalysisQuerier) (*ssh.Server, error) {
	return wish.NewServer(opts.serverOptions(analyses)...)
}

func sessionHandler(analyses AnalysisQuerier) bm.Handler {
	return func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
		m := NewAppModel(Services{Analyses: analyses, Username: s.User()})
		if pty, _, ok := s.Pty(); ok {
			m.SetSize(pty.Window.Width, pty.Window.Height)
		}
		return m, []tea.ProgramOption{tea.WithAltScreen()}
	}
}

// Run starts the screener on the local terminal and blocks until it exits.
func Run(svc Services) error {
	_, err := tea.NewProgram(NewAppModel(svc), tea.WithAltScreen()).Run()
	return err
}
