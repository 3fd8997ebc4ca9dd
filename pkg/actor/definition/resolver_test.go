package definition

import (
	"errors"
	"testing"

	"github.com/jabolina/go-actor/pkg/actor/types"
)

func Test_StaticResolver_ResolveRegisteredLabel(t *testing.T) {
	r := NewStaticResolver()
	r.Register("greeter", func(env []byte) (interface{}, error) {
		return "hello", nil
	})

	v, ok := r.Resolve("greeter", nil)
	if !ok || v.(string) != "hello" {
		t.Fatalf("expected (\"hello\", true), got (%v, %v)", v, ok)
	}
}

func Test_StaticResolver_ResolveUnknownLabel(t *testing.T) {
	r := NewStaticResolver()
	if _, ok := r.Resolve("missing", nil); ok {
		t.Error("expected resolving an unregistered label to fail")
	}
}

func Test_StaticResolver_ResolveFactoryError(t *testing.T) {
	r := NewStaticResolver()
	r.Register("broken", func(env []byte) (interface{}, error) {
		return nil, errors.New("boom")
	})
	if _, ok := r.Resolve("broken", nil); ok {
		t.Error("expected a factory error to surface as a failed resolve")
	}
}

func Test_UnClosure_SucceedsOnFingerprintMatch(t *testing.T) {
	r := NewStaticResolver()
	r.Register("greeter", func(env []byte) (interface{}, error) {
		return "hello", nil
	})

	v, err := UnClosure(r, types.Closure{Label: "greeter"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.(string) != "hello" {
		t.Errorf("expected %q, got %v", "hello", v)
	}
}

func Test_UnClosure_FailsOnUnknownLabel(t *testing.T) {
	r := NewStaticResolver()
	_, err := UnClosure(r, types.Closure{Label: "missing"}, "")
	if !errors.Is(err, types.ErrClosureNotFound) {
		t.Errorf("expected ErrClosureNotFound, got %v", err)
	}
}

func Test_UnClosure_FailsOnFingerprintMismatch(t *testing.T) {
	r := NewStaticResolver()
	r.Register("counter", func(env []byte) (interface{}, error) {
		return 42, nil
	})
	_, err := UnClosure(r, types.Closure{Label: "counter"}, "")
	if !errors.Is(err, types.ErrClosureTypeMismatch) {
		t.Errorf("expected ErrClosureTypeMismatch, got %v", err)
	}
}
