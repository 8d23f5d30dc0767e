package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/cordbridge/internal/domain"
	"github.com/soyeahso/cordbridge/internal/store"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored chat service credential",
	}

	cmd.AddCommand(newTokenSetCmd())
	cmd.AddCommand(newTokenClearCmd())
	cmd.AddCommand(newTokenStatusCmd())
	return cmd
}

// openCredentials opens the configured credential store.
func openCredentials() (store.Credentials, io.Closer, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, nil, err
	}
	return store.OpenCredentials(cfg.Store, paths, log)
}

func newTokenSetCmd() *cobra.Command {
	var live bool

	cmd := &cobra.Command{
		Use:   "set [credential]",
		Short: "Store the credential (read from stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			credential, err := credentialArg(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			if live {
				return submitLive(cmd.Context(), credential)
			}

			creds, closer, err := openCredentials()
			if err != nil {
				return err
			}
			defer closer.Close()

			if err := creds.Save(context.Background(), credential); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Credential stored")
			return nil
		},
	}

	cmd.Flags().BoolVar(&live, "live", false, "hand the credential to the running bridge, which stores it and logs in")
	return cmd
}

// credentialArg takes the credential from args or the first line of in.
func credentialArg(args []string, in io.Reader) (string, error) {
	var credential string
	if len(args) == 1 {
		credential = args[0]
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("reading credential: %w", err)
		}
		credential = line
	}
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "", domain.ErrCredentialMissing
	}
	return credential, nil
}

func submitLive(ctx context.Context, credential string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := dialGateway(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bridge not reachable: %w", err)
	}
	defer conn.Close()

	_, err = conn.Call(ctx, domain.MethodToken, map[string]string{"credential": credential})
	return err
}

func newTokenClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, closer, err := openCredentials()
			if err != nil {
				return err
			}
			defer closer.Close()

			if err := creds.Clear(context.Background()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Credential cleared")
			return nil
		},
	}
}

func newTokenStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a credential is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, closer, err := openCredentials()
			if err != nil {
				return err
			}
			defer closer.Close()

			st, err := creds.Status(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), describeCredential(st))
			return nil
		},
	}
}

func describeCredential(st store.CredentialStatus) string {
	if !st.Set {
		return "not set"
	}
	s := "set"
	if st.Sealed {
		s += " (sealed)"
	}
	if !st.UpdatedAt.IsZero() {
		s += ", updated " + st.UpdatedAt.Local().Format("2006-01-02 15:04")
	}
	return s
}
