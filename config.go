package dynload

import (
	"fmt"
	"os"

	env "github.com/xyproto/env/v2"
)

// VerboseMode gates the pipeline's stage-transition and relocation trace
// lines. Warnings (unknown relocation type, missing .plt, unresolved
// JMP_SLOT) are always printed regardless of VerboseMode, matching §7's
// "Unknown relocation types log at warn and do not abort."
var VerboseMode = env.Bool("DYNLOAD_VERBOSE")

// tracef prints a debug-level trace line when VerboseMode is set.
func tracef(format string, args ...any) {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "dynload: "+format+"\n", args...)
	}
}

// warnf prints a warn-level line unconditionally. Used for the
// warn-and-skip paths §4.6.5/§4.5/§9 require never fail a load.
func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "dynload: warning: "+format+"\n", args...)
}

// LoaderConfig holds the knobs an embedding test harness or demo program
// can set without editing code, read from the environment via
// github.com/xyproto/env/v2 the same way the teacher's go.mod declares the
// dependency but (unlike the teacher) actually wires it to a component.
type LoaderConfig struct {
	// PortProfile selects a simulated chip port variant for the demo
	// harness and for tests that want to exercise a specific capability
	// combination without constructing a Port by hand.
	PortProfile string
	// DefaultCaps is the allocation-capability hint the demo harness passes
	// to LoadFromBuffer. Loader itself does not read LoaderConfig.
	DefaultCaps uint32
}

// LoadConfigFromEnv reads DYNLOAD_PORT_PROFILE and DYNLOAD_CAPS, falling
// back to the host-simulation profile and no capability hint.
func LoadConfigFromEnv() LoaderConfig {
	return LoaderConfig{
		PortProfile: env.StrOr("DYNLOAD_PORT_PROFILE", "hostsim"),
		DefaultCaps: uint32(env.IntOr("DYNLOAD_CAPS", 0)),
	}
}
