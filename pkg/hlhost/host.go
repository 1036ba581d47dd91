// Package hlhost defines the native-function resolution boundary the
// interpreter is injected with (spec §9 "no global state... natives are
// resolved via an injected loader, not looked up from a process-wide
// table"). The actual native implementations — math, logging, string and
// array handling — are the host runtime library and are out of scope for
// this module (spec §1); this package only fixes the resolution contract.
package hlhost

import (
	"fmt"

	"github.com/oisee/hlbc/pkg/hlir"
)

// ErrNotFound is returned by a Loader when it has no handler for a name.
// The interpreter turns any such failure into a fatal startup error
// (spec §7, error kind 5: "unresolved native").
type ErrNotFound struct {
	Name string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("unresolved native: %q", e.Name)
}

// Loader resolves a native function by the name recorded in a module's
// natives table.
type Loader interface {
	Resolve(name string) (hlir.NativeFunc, error)
}

// MapLoader is the simplest Loader: a fixed name-to-handler map, built by
// the embedding driver before interpretation starts.
type MapLoader map[string]hlir.NativeFunc

// Resolve looks name up in the map.
func (m MapLoader) Resolve(name string) (hlir.NativeFunc, error) {
	fn, ok := m[name]
	if !ok {
		return nil, &ErrNotFound{Name: name}
	}
	return fn, nil
}
