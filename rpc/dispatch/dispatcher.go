package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/yaumlabs/bridge/rpc/common"
	"github.com/yaumlabs/bridge/rpc/registry"
)

var logger = common.GetLogger("dispatch")

var (
	successTotal = metrics.GetOrCreateCounter(`bridge_dispatch_total{status="success"}`)
	errorTotal   = metrics.GetOrCreateCounter(`bridge_dispatch_total{status="error"}`)
	durationHist = metrics.GetOrCreateHistogram(`bridge_dispatch_duration_seconds`)
)

// DefaultWarnThreshold is the invocation duration above which a warning
// is logged. No timeout is enforced host-side.
const DefaultWarnThreshold = 100 * time.Millisecond

// --------------------------------------------------------------------------
// Dispatcher
// --------------------------------------------------------------------------

// Dispatcher resolves request envelopes against a registry and produces
// response envelopes. It holds no mutable state and is safe to share.
type Dispatcher struct {
	registry      *registry.Registry
	warnThreshold time.Duration
}

// New creates a dispatcher over a fully built registry.
func New(reg *registry.Registry) *Dispatcher {
	return &Dispatcher{
		registry:      reg,
		warnThreshold: DefaultWarnThreshold,
	}
}

// Dispatch resolves and invokes the envelope's command and returns the
// response envelope. It never returns nil and never panics.
func (d *Dispatcher) Dispatch(ctx context.Context, env *common.Envelope) *common.Envelope {
	params, err := registry.DecodeParams(env.Parameters)
	if err != nil {
		return common.NewErrorResponse(env, err.Error())
	}

	entry, params, errResp := d.resolve(env, params)
	if errResp != nil {
		return errResp
	}

	return d.invoke(ctx, env, entry, registry.NormalizeKeys(params))
}

// resolve finds the registry entry for the envelope. The reserved
// resource dispatch command carries the real resource name and its own
// nested parameters inside the outer parameter map.
func (d *Dispatcher) resolve(env *common.Envelope, params map[string]any) (*registry.Entry, map[string]any, *common.Envelope) {
	if env.Command != common.ResourceDispatchName {
		entry, ok := d.registry.Lookup(env.Command)
		if !ok {
			return nil, nil, common.NewErrorResponse(env, fmt.Sprintf("Unknown command: %s", env.Command))
		}
		return entry, params, nil
	}

	name, ok := params["resource_name"].(string)
	if !ok || name == "" {
		return nil, nil, common.NewErrorResponse(env,
			fmt.Sprintf("Required parameter 'resource_name' not provided for '%s'", common.ResourceDispatchName))
	}
	entry, ok := d.registry.LookupResource(name)
	if !ok {
		return nil, nil, common.NewErrorResponse(env, fmt.Sprintf("Unknown resource: %s", name))
	}

	nested := map[string]any{}
	if inner, ok := params["parameters"].(map[string]any); ok {
		nested = inner
	}
	return entry, nested, nil
}

// invoke runs the entry with panic recovery and timing. The context is
// passed through explicitly so handlers never rely on hidden state.
func (d *Dispatcher) invoke(ctx context.Context, env *common.Envelope, entry *registry.Entry, params map[string]any) (resp *common.Envelope) {
	start := time.Now()
	defer func() {
		durationHist.UpdateDuration(start)
		if elapsed := time.Since(start); elapsed > d.warnThreshold {
			logger.Warnf("command %s took %s", entry.Name, elapsed)
		}
		if r := recover(); r != nil {
			errorTotal.Inc()
			logger.Errorf("panic in command %s: %v\n%s", entry.Name, r, debug.Stack())
			resp = common.NewErrorResponse(env, fmt.Sprintf("Internal error executing %s: %v", entry.Name, r))
		}
	}()

	result, err := entry.Invoke(ctx, params)
	if err != nil {
		errorTotal.Inc()
		logger.Debugf("command %s failed: %v", entry.Name, err)
		return common.NewErrorResponse(env, err.Error())
	}

	successTotal.Inc()
	return common.NewSuccessResponse(env, result)
}
