package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tjfontaine/blueprint-api/internal/interrupt"
	"github.com/tjfontaine/blueprint-api/internal/pkg/config"
	"github.com/tjfontaine/blueprint-api/internal/pkg/safehttp"
)

// hookTable holds the hooks currently bound to each interrupt point. The
// actions are built once with bound lookups so a reload only swaps the
// table.
type hookTable struct {
	current atomic.Pointer[map[string]interrupt.Hook]
}

func newHookTable() *hookTable {
	t := &hookTable{}
	t.store(nil)
	return t
}

func (t *hookTable) store(hooks map[string]interrupt.Hook) {
	if hooks == nil {
		hooks = map[string]interrupt.Hook{}
	}
	t.current.Store(&hooks)
}

func (t *hookTable) bind(name string) interrupt.Hook {
	return func(ctx context.Context, ev *interrupt.Event) error {
		if h, ok := (*t.current.Load())[name]; ok {
			return h(ctx, ev)
		}
		return nil
	}
}

// buildHooks chains the embedder's hooks and the configured webhooks per
// interrupt point. Embedder hooks run first; webhooks only see events for
// their model.
func buildHooks(cfgs []config.HookConfig, extra map[string][]interrupt.Hook, logger *slog.Logger) (map[string]interrupt.Hook, error) {
	chains := make(map[string][]interrupt.Hook, len(extra))
	for name, hooks := range extra {
		chains[name] = append(chains[name], hooks...)
	}

	for i, hc := range cfgs {
		if !validHookName(hc.Name) {
			return nil, fmt.Errorf("hooks[%d]: unknown hook %q", i, hc.Name)
		}

		var timeout time.Duration
		if hc.Timeout != "" {
			d, err := time.ParseDuration(hc.Timeout)
			if err != nil {
				return nil, fmt.Errorf("hooks[%d]: invalid timeout: %w", i, err)
			}
			timeout = d
		}

		var transport http.RoundTripper
		if hc.BlockPrivate {
			transport = safehttp.NewTransport(timeout)
		}

		wh := interrupt.NewWebhook(interrupt.WebhookConfig{
			URL:       hc.URL,
			Timeout:   timeout,
			OnError:   interrupt.WebhookAction(hc.OnError),
			Retries:   hc.Retries,
			Headers:   hc.Headers,
			Transport: transport,
			Logger:    logger.With(slog.String("hook", hc.Name), slog.String("model", hc.Model)),
		})
		chains[hc.Name] = append(chains[hc.Name], interrupt.ForModel(hc.Model, wh))
	}

	out := make(map[string]interrupt.Hook, len(chains))
	for name, hooks := range chains {
		out[name] = interrupt.Chain(hooks...)
	}
	return out, nil
}

func validHookName(name string) bool {
	switch name {
	case interrupt.Create, interrupt.BeforeUpdate, interrupt.AfterUpdate:
		return true
	}
	return false
}
