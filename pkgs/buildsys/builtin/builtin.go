// Package builtin registers the plugins shipped with partcraft.
package builtin

import (
	"github.com/goplus/partcraft/pkgs/buildsys"
	"github.com/goplus/partcraft/pkgs/buildsys/autotools"
	"github.com/goplus/partcraft/pkgs/buildsys/flutter"
	"github.com/goplus/partcraft/pkgs/buildsys/makefile"
)

// Factories returns the factories of the builtin plugins.
func Factories() []buildsys.Factory {
	return []buildsys.Factory{
		autotools.Factory,
		flutter.Factory,
		makefile.Factory,
	}
}

// Registry returns a new registry holding the builtin plugins.
func Registry() *buildsys.Registry {
	r := buildsys.NewRegistry()
	for _, f := range Factories() {
		if err := r.Register(f); err != nil {
			panic(err)
		}
	}
	return r
}
