package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/cordbridge/internal/domain"
)

func newSendCmd() *cobra.Command {
	var typing string

	cmd := &cobra.Command{
		Use:   "send <channel-id> [text...]",
		Short: "Send a message to a channel through the running bridge",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			payload, err := sendPayload(args[1:], typing)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			conn, err := dialGateway(ctx, cfg)
			if err != nil {
				return fmt.Errorf("bridge not reachable: %w", err)
			}
			defer conn.Close()

			if _, err := conn.Call(ctx, args[0], payload); err != nil {
				return err
			}
			log.Debug().Str("channel", args[0]).Msg("sent")
			return nil
		},
	}

	cmd.Flags().StringVar(&typing, "typing", "", "send a typing indicator instead of text (start or stop)")
	return cmd
}

// sendPayload builds the channel command for send.
func sendPayload(words []string, typing string) (any, error) {
	if typing != "" {
		if typing != domain.TypingStart && typing != "stop" {
			return nil, fmt.Errorf("--typing must be start or stop, got %q", typing)
		}
		return domain.Command{Type: domain.CommandTyping, Action: typing}, nil
	}
	text := strings.Join(words, " ")
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("message text is required")
	}
	return domain.Command{Type: domain.CommandMessage, Message: text}, nil
}
