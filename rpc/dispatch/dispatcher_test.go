package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/yaumlabs/bridge/rpc/common"
	"github.com/yaumlabs/bridge/rpc/registry"
)

// buildRegistry creates a registry with the entries the tests exercise
func buildRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()

	entries := []*registry.Entry{
		{
			Name: "echo",
			Handler: func(_ context.Context, params map[string]any) (any, error) {
				return params, nil
			},
		},
		{
			Name: "fail",
			Handler: func(_ context.Context, _ map[string]any) (any, error) {
				return nil, errors.New("deliberate failure")
			},
		},
		{
			Name: "explode",
			Handler: func(_ context.Context, _ map[string]any) (any, error) {
				panic("boom")
			},
		},
		{
			Name: "take_screenshot",
			Parameters: []registry.Parameter{
				{Name: "width", Type: "int", Required: true},
			},
			Handler: func(_ context.Context, params map[string]any) (any, error) {
				return params["width"], nil
			},
		},
	}
	for _, e := range entries {
		if err := reg.Register(e); err != nil {
			t.Fatalf("failed to register %s: %v", e.Name, err)
		}
	}

	err := reg.RegisterResource(&registry.Entry{
		Name: "scene_summary",
		Handler: func(_ context.Context, params map[string]any) (any, error) {
			return map[string]any{"received": params}, nil
		},
	})
	if err != nil {
		t.Fatalf("failed to register resource: %v", err)
	}

	return reg
}

func request(command string, params string) *common.Envelope {
	var raw json.RawMessage
	if params != "" {
		raw = json.RawMessage(params)
	}
	return common.NewRequest("req_test", command, raw)
}

// TestDispatchSuccess verifies the success path and id echoing
func TestDispatchSuccess(t *testing.T) {
	d := New(buildRegistry(t))

	resp := d.Dispatch(context.Background(), request("echo", `{"value":"x"}`))

	if resp == nil {
		t.Fatal("dispatch returned nil")
	}
	if resp.ID != "req_test" {
		t.Errorf("response id %s does not match request", resp.ID)
	}
	if resp.Status != common.StatusSuccess {
		t.Errorf("expected success, got %s (%s)", resp.Status, resp.Error)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok || result["value"] != "x" {
		t.Errorf("unexpected result: %v", resp.Result)
	}
}

// TestDispatchUnknownCommand verifies the exact unknown-command message
func TestDispatchUnknownCommand(t *testing.T) {
	d := New(buildRegistry(t))

	resp := d.Dispatch(context.Background(), request("no_such_command", ""))

	if resp.Status != common.StatusError {
		t.Fatalf("expected error status, got %s", resp.Status)
	}
	if resp.Error != "Unknown command: no_such_command" {
		t.Errorf("unexpected error message: %s", resp.Error)
	}
}

// TestDispatchHandlerError verifies that a handler error becomes an error
// envelope with the error's message
func TestDispatchHandlerError(t *testing.T) {
	d := New(buildRegistry(t))

	resp := d.Dispatch(context.Background(), request("fail", ""))

	if resp.Status != common.StatusError {
		t.Fatalf("expected error status, got %s", resp.Status)
	}
	if resp.Error != "deliberate failure" {
		t.Errorf("unexpected error message: %s", resp.Error)
	}
}

// TestDispatchPanicRecovery verifies that a panicking handler yields an
// error envelope instead of taking the pump down
func TestDispatchPanicRecovery(t *testing.T) {
	d := New(buildRegistry(t))

	resp := d.Dispatch(context.Background(), request("explode", ""))

	if resp == nil {
		t.Fatal("dispatch returned nil after panic")
	}
	if resp.Status != common.StatusError {
		t.Fatalf("expected error status, got %s", resp.Status)
	}
	want := fmt.Sprintf("Internal error executing %s: %v", "explode", "boom")
	if resp.Error != want {
		t.Errorf("unexpected error message: %s", resp.Error)
	}
}

// TestDispatchMissingParameter verifies required-parameter enforcement
// through the full dispatch path
func TestDispatchMissingParameter(t *testing.T) {
	d := New(buildRegistry(t))

	resp := d.Dispatch(context.Background(), request("take_screenshot", `{}`))

	if resp.Status != common.StatusError {
		t.Fatalf("expected error status, got %s", resp.Status)
	}
	want := "Required parameter 'width' not provided for 'take_screenshot'"
	if resp.Error != want {
		t.Errorf("unexpected error message: %s", resp.Error)
	}
}

// TestDispatchKeyNormalization verifies that wire snake_case keys reach
// the handler in camelCase
func TestDispatchKeyNormalization(t *testing.T) {
	reg := registry.New()
	var seen map[string]any
	err := reg.Register(&registry.Entry{
		Name: "inspect",
		Handler: func(_ context.Context, params map[string]any) (any, error) {
			seen = params
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	d := New(reg)
	resp := d.Dispatch(context.Background(), request("inspect", `{"max_logs":5,"filter_text":"x"}`))

	if resp.Status != common.StatusSuccess {
		t.Fatalf("dispatch failed: %s", resp.Error)
	}
	if _, ok := seen["maxLogs"]; !ok {
		t.Error("expected maxLogs key in handler parameters")
	}
	if _, ok := seen["filterText"]; !ok {
		t.Error("expected filterText key in handler parameters")
	}
	if _, ok := seen["max_logs"]; ok {
		t.Error("snake_case key must not reach the handler")
	}
}

// TestDispatchResource verifies resolution through the reserved resource
// dispatch command
func TestDispatchResource(t *testing.T) {
	d := New(buildRegistry(t))

	t.Run("success", func(t *testing.T) {
		resp := d.Dispatch(context.Background(),
			request(common.ResourceDispatchName, `{"resource_name":"scene_summary","parameters":{"depth":2}}`))

		if resp.Status != common.StatusSuccess {
			t.Fatalf("dispatch failed: %s", resp.Error)
		}
		result := resp.Result.(map[string]any)
		received := result["received"].(map[string]any)
		if received["depth"] != float64(2) {
			t.Errorf("nested parameters did not reach the resource handler: %v", received)
		}
	})

	t.Run("unknown resource", func(t *testing.T) {
		resp := d.Dispatch(context.Background(),
			request(common.ResourceDispatchName, `{"resource_name":"no_such_resource"}`))

		if resp.Error != "Unknown resource: no_such_resource" {
			t.Errorf("unexpected error message: %s", resp.Error)
		}
	})

	t.Run("missing resource name", func(t *testing.T) {
		resp := d.Dispatch(context.Background(),
			request(common.ResourceDispatchName, `{"parameters":{}}`))

		want := "Required parameter 'resource_name' not provided for 'access_resource'"
		if resp.Error != want {
			t.Errorf("unexpected error message: %s", resp.Error)
		}
	})
}

// TestDispatchMalformedParameters verifies that a non-object parameter
// container is rejected before resolution
func TestDispatchMalformedParameters(t *testing.T) {
	d := New(buildRegistry(t))

	resp := d.Dispatch(context.Background(), request("echo", `[1,2]`))

	if resp.Status != common.StatusError {
		t.Fatalf("expected error status, got %s", resp.Status)
	}
}
