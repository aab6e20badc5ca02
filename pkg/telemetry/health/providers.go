package health

import (
	"context"
	"errors"
	"time"

	"github.com/raikyou/uniapi/pkg/configstore"
	"github.com/raikyou/uniapi/pkg/routing"
)

// ProviderCheck returns a CheckFunc that is healthy iff at least one
// configured provider is enabled and not currently in cooldown.
func ProviderCheck(store *configstore.Store, registry *routing.Registry) CheckFunc {
	return func(ctx context.Context) error {
		cfg := store.Snapshot().Doc
		now := time.Now()
		for _, pc := range cfg.Providers {
			if !pc.IsEnabled() {
				continue
			}
			if !registry.Get(pc.Provider).InCooldown(now) {
				return nil
			}
		}
		return errors.New("no enabled provider is out of cooldown")
	}
}
