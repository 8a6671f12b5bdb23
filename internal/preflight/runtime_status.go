package preflight

import (
	"context"
	"strings"

	"audiovault/internal/config"
)

// CheckIdentityFromConfig evaluates the identity service from config and connectivity.
func CheckIdentityFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "Identity service"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Identity.URL) == "" {
		return Result{Name: name, Detail: "Missing URL"}
	}
	return CheckIdentity(ctx, cfg.Identity.URL)
}
