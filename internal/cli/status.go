package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/soyeahso/cordbridge/internal/bridge"
	"github.com/soyeahso/cordbridge/internal/config"
	"github.com/soyeahso/cordbridge/internal/domain"
	"github.com/soyeahso/cordbridge/internal/lifecycle"
	"github.com/soyeahso/cordbridge/internal/version"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	sectionStyle = lipgloss.NewStyle().Bold(true).MarginTop(1)
	labelStyle   = lipgloss.NewStyle().Width(12).Foreground(lipgloss.Color("8"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	badStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, credential and live bridge state",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("cordbridge %s", version.Version)))
			fmt.Fprintln(out, row("Config", paths.Config))
			fmt.Fprintln(out, row("Data", paths.Data))

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintln(out, row("Config", badStyle.Render("error: "+err.Error())))
				return nil
			}
			if _, statErr := os.Stat(paths.Config); os.IsNotExist(statErr) {
				fmt.Fprintln(out, row("", warnStyle.Render("not found, using defaults")))
			}

			renderConfig(out, cfg)

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintln(out, sectionStyle.Render(fmt.Sprintf("Validation issues (%d)", len(issues))))
				for _, issue := range issues {
					fmt.Fprintln(out, badStyle.Render("  - "+issue.String()))
				}
				return nil
			}

			fmt.Fprintln(out, sectionStyle.Render("Credential"))
			if creds, closer, err := openCredentials(); err != nil {
				fmt.Fprintln(out, row("Store", badStyle.Render(err.Error())))
			} else {
				st, err := creds.Status(context.Background())
				closer.Close()
				switch {
				case err != nil:
					fmt.Fprintln(out, row("Store", badStyle.Render(err.Error())))
				case st.Set:
					fmt.Fprintln(out, row("Store", okStyle.Render(describeCredential(st))))
				default:
					fmt.Fprintln(out, row("Store", warnStyle.Render(describeCredential(st))))
				}
			}

			fmt.Fprintln(out, sectionStyle.Render("Bridge"))
			view, err := liveState(cmd.Context(), cfg)
			if err != nil {
				fmt.Fprintln(out, row("State", warnStyle.Render("not running")))
				return nil
			}
			renderState(out, view)
			return nil
		},
	}
}

func renderConfig(out io.Writer, cfg config.Config) {
	fmt.Fprintln(out, sectionStyle.Render("Connection"))
	fmt.Fprintln(out, row("Provider", cfg.Connection.Provider))
	if irc := cfg.Connection.IRC; cfg.Connection.Provider == "irc" && irc != nil {
		fmt.Fprintln(out, row("IRC", fmt.Sprintf("%s nick=%s channels=%s tls=%v",
			irc.Server, irc.Nick, strings.Join(irc.Channels, ","), irc.UseTLS)))
	}
	r := cfg.Connection.Retry
	fmt.Fprintln(out, row("Retry", fmt.Sprintf("%d x %s (%s)", r.Ceiling, r.RetryDelay(), r.Policy)))

	fmt.Fprintln(out, sectionStyle.Render("Gateway"))
	fmt.Fprintln(out, row("Listen", fmt.Sprintf("port=%d bind=%s auth=%s tls=%v",
		cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.Auth.Mode, cfg.Gateway.TLS.Enabled)))
	fmt.Fprintln(out, row("Store", fmt.Sprintf("%s sealed=%v", cfg.Store.Driver, cfg.Store.Sealed())))
}

func liveState(ctx context.Context, cfg config.Config) (bridge.StateView, error) {
	var view bridge.StateView
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := dialGateway(ctx, cfg)
	if err != nil {
		return view, err
	}
	defer conn.Close()

	payload, err := conn.Call(ctx, domain.MethodState, nil)
	if err != nil {
		return view, err
	}
	err = json.Unmarshal(payload, &view)
	return view, err
}

func renderState(out io.Writer, view bridge.StateView) {
	style := warnStyle
	switch view.State {
	case lifecycle.Connected.String():
		style = okStyle
	case lifecycle.CredentialMissing.String():
		style = badStyle
	}
	fmt.Fprintln(out, row("State", style.Render(view.State)))
	if view.Retries > 0 {
		fmt.Fprintln(out, row("Retries", fmt.Sprint(view.Retries)))
	}
	if view.Error != "" {
		fmt.Fprintln(out, row("Last error", badStyle.Render(view.Error)))
	}

	channels := 0
	for _, s := range view.Servers {
		channels += len(s.Channels)
	}
	fmt.Fprintln(out, row("Servers", fmt.Sprintf("%d (%d channels)", len(view.Servers), channels)))
	for _, s := range view.Servers {
		fmt.Fprintln(out, row("", fmt.Sprintf("%s (%s)", s.Name, s.ID)))
	}
	if view.Active != nil {
		fmt.Fprintln(out, row("Active", "#"+view.Active.Name))
	}
}
