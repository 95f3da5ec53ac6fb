package registry

import (
	"context"
	"errors"
	"testing"
)

func noopHandler(_ context.Context, params map[string]any) (any, error) {
	return params, nil
}

// TestRegister verifies registration validation and duplicate rejection
func TestRegister(t *testing.T) {
	r := New()

	if err := r.Register(&Entry{Name: "echo", Handler: noopHandler}); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	t.Run("duplicate", func(t *testing.T) {
		if err := r.Register(&Entry{Name: "echo", Handler: noopHandler}); err == nil {
			t.Error("duplicate registration should fail")
		}
	})

	t.Run("missing name", func(t *testing.T) {
		if err := r.Register(&Entry{Handler: noopHandler}); err == nil {
			t.Error("registration without a name should fail")
		}
	})

	t.Run("missing handler", func(t *testing.T) {
		if err := r.Register(&Entry{Name: "broken"}); err == nil {
			t.Error("registration without a handler should fail")
		}
	})

	t.Run("separate namespaces", func(t *testing.T) {
		// A resource may carry the same name as a command
		if err := r.RegisterResource(&Entry{Name: "echo", Handler: noopHandler}); err != nil {
			t.Errorf("resource registration failed: %v", err)
		}
		if _, ok := r.LookupResource("echo"); !ok {
			t.Error("resource lookup failed")
		}
	})
}

// TestLookup verifies exact, case-sensitive resolution
func TestLookup(t *testing.T) {
	r := New()
	if err := r.Register(&Entry{Name: "get_logs", Handler: noopHandler}); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	if _, ok := r.Lookup("get_logs"); !ok {
		t.Error("exact lookup failed")
	}
	if _, ok := r.Lookup("GET_LOGS"); ok {
		t.Error("lookup must be case-sensitive")
	}
	if _, ok := r.Lookup("getLogs"); ok {
		t.Error("lookup must not normalize names")
	}
}

// TestInvoke verifies required-parameter enforcement and type coercion
func TestInvoke(t *testing.T) {
	entry := &Entry{
		Name: "resize",
		Parameters: []Parameter{
			{Name: "width", Type: "int", Required: true},
			{Name: "label", Type: "string"},
		},
		Handler: noopHandler,
	}

	t.Run("missing required", func(t *testing.T) {
		_, err := entry.Invoke(context.Background(), map[string]any{})
		var missing *MissingParameterError
		if !errors.As(err, &missing) {
			t.Fatalf("expected MissingParameterError, got %v", err)
		}
		want := "Required parameter 'width' not provided for 'resize'"
		if missing.Error() != want {
			t.Errorf("unexpected message: %s", missing.Error())
		}
	})

	t.Run("coercion", func(t *testing.T) {
		// JSON decodes numbers as float64; the declared int type converts them
		result, err := entry.Invoke(context.Background(), map[string]any{"width": float64(800)})
		if err != nil {
			t.Fatalf("invoke failed: %v", err)
		}
		params := result.(map[string]any)
		if w, ok := params["width"].(int); !ok || w != 800 {
			t.Errorf("expected width coerced to int 800, got %T %v", params["width"], params["width"])
		}
	})

	t.Run("fractional rejected", func(t *testing.T) {
		_, err := entry.Invoke(context.Background(), map[string]any{"width": 1.5})
		if err == nil {
			t.Error("fractional value for int parameter should fail")
		}
	})

	t.Run("optional absent", func(t *testing.T) {
		if _, err := entry.Invoke(context.Background(), map[string]any{"width": float64(1)}); err != nil {
			t.Errorf("invoke without optional parameter failed: %v", err)
		}
	})

	t.Run("undeclared pass through", func(t *testing.T) {
		result, err := entry.Invoke(context.Background(), map[string]any{"width": float64(1), "extra": "kept"})
		if err != nil {
			t.Fatalf("invoke failed: %v", err)
		}
		if result.(map[string]any)["extra"] != "kept" {
			t.Error("undeclared parameter should pass through untouched")
		}
	})
}

// TestSchema verifies the sorted enumeration
func TestSchema(t *testing.T) {
	r := New()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(&Entry{Name: name, Handler: noopHandler}); err != nil {
			t.Fatalf("registration failed: %v", err)
		}
	}

	tools := r.Tools()
	if len(tools) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(tools))
	}
	for i, want := range []string{"alpha", "mid", "zeta"} {
		if tools[i].Name != want {
			t.Errorf("position %d: expected %s, got %s", i, want, tools[i].Name)
		}
	}

	schema := r.Schema()
	if _, ok := schema["tools"]; !ok {
		t.Error("schema missing tools")
	}
	if _, ok := schema["resources"]; !ok {
		t.Error("schema missing resources")
	}
}
