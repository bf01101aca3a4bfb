package internal

import (
	"fmt"
	"runtime"

	"github.com/goplus/partcraft/pkgs/buildsys"
)

// debArches maps GOARCH values to Debian architecture names.
var debArches = map[string]string{
	"amd64":   "amd64",
	"arm64":   "arm64",
	"arm":     "armhf",
	"386":     "i386",
	"ppc64le": "ppc64el",
	"riscv64": "riscv64",
	"s390x":   "s390x",
}

// triplets maps Debian architecture names to GNU triplets.
var triplets = map[string]string{
	"amd64":   "x86_64-linux-gnu",
	"arm64":   "aarch64-linux-gnu",
	"armhf":   "arm-linux-gnueabihf",
	"i386":    "i386-linux-gnu",
	"ppc64el": "powerpc64le-linux-gnu",
	"riscv64": "riscv64-linux-gnu",
	"s390x":   "s390x-linux-gnu",
}

func hostArch() string {
	if arch, ok := debArches[runtime.GOARCH]; ok {
		return arch
	}
	return runtime.GOARCH
}

// resolveTarget returns the build target for arch, cross-compiling when it
// differs from the host. An explicit triplet wins over the derived one and
// needs an explicit arch.
func resolveTarget(arch, triplet string, jobs int) (buildsys.Target, error) {
	if arch == "" && triplet != "" {
		return buildsys.Target{}, fmt.Errorf("--host-triplet %q requires --target-arch", triplet)
	}
	host := hostArch()
	if arch == "" {
		arch = host
	}
	if triplet == "" {
		triplet = triplets[arch]
	}
	t := buildsys.Target{
		Arch:               arch,
		Triplet:            triplet,
		Cross:              arch != host,
		ParallelBuildCount: jobs,
	}
	if t.Cross && t.Triplet == "" {
		return t, fmt.Errorf("unknown target architecture %q: set --host-triplet", arch)
	}
	return t, nil
}
