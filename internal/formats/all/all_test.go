package all_test

import (
	"testing"

	"github.com/tierline/tierline/internal/formats"
	_ "github.com/tierline/tierline/internal/formats/all"
)

// TestHandlerRegistrations verifies that importing the all package
// registers every built-in handler.
func TestHandlerRegistrations(t *testing.T) {
	expected := []string{"csv", "eaf", "tierdoc"}

	names := formats.Names()
	registered := make(map[string]bool, len(names))
	for _, n := range names {
		registered[n] = true
	}

	for _, name := range expected {
		if !registered[name] {
			t.Errorf("handler %q is not registered", name)
			continue
		}
		h, ok := formats.Get(name)
		if !ok {
			t.Errorf("Get(%q) returned no handler", name)
			continue
		}
		if h.Name() != name {
			t.Errorf("Get(%q).Name() = %q", name, h.Name())
		}
		if len(h.Extensions()) == 0 {
			t.Errorf("handler %q declares no extensions", name)
		}
	}
}
