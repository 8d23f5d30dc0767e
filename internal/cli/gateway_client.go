package cli

import (
	"context"
	"runtime"
	"time"

	"github.com/soyeahso/cordbridge/internal/config"
	"github.com/soyeahso/cordbridge/internal/gateway"
	"github.com/soyeahso/cordbridge/internal/version"
)

const dialTimeout = 5 * time.Second

// dialGateway connects to a running bridge as a CLI client.
func dialGateway(ctx context.Context, cfg config.Config) (*gateway.Conn, error) {
	resolved, err := gateway.ResolveAuth(cfg.Gateway.Auth).WithTokenFile(paths.GatewayToken(), false)
	if err != nil {
		return nil, err
	}
	auth := gateway.ConnectAuth{Token: resolved.Token}
	if resolved.Mode == "password" {
		auth = gateway.ConnectAuth{Password: resolved.Password}
	}

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	return gateway.Dial(ctx, gateway.URL(cfg.Gateway), auth, gateway.ClientInfo{
		ID:       "cordbridge-cli",
		Version:  version.Version,
		Platform: runtime.GOOS,
		Mode:     gateway.ClientModeCLI,
	})
}
