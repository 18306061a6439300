package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/dynload"
)

const versionString = "dynload-demo 0.1.0"

func main() {
	var portProfile = flag.String("port", "", "simulated chip port profile (hostsim, unified, fixedoffset, pagemapped, wordonly); defaults to DYNLOAD_PORT_PROFILE or hostsim")
	var archFlag = flag.String("arch", "xtensa", "target architecture (xtensa, riscv32)")
	var imagePath = flag.String("image", "", "path to a 32-bit ELF image to load")
	var symbolFlag = flag.String("symbol", "", "resolve this exported symbol after loading and print its address")
	var verbose = flag.Bool("v", false, "verbose mode (show stage-by-stage trace)")
	var version = flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *version {
		fmt.Println(versionString)
		return
	}
	if *verbose {
		dynload.VerboseMode = true
	}

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "dynload-demo: -image is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg := dynload.LoadConfigFromEnv()
	if *portProfile != "" {
		cfg.PortProfile = *portProfile
	}

	arch, err := dynload.ParseArch(*archFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dynload-demo:", err)
		os.Exit(1)
	}

	port, closePort, err := buildPort(cfg.PortProfile, arch)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dynload-demo: port setup failed:", err)
		os.Exit(1)
	}
	defer closePort()

	image, err := os.ReadFile(*imagePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dynload-demo: reading image:", err)
		os.Exit(1)
	}

	loader := dynload.NewLoader(port, nil)
	if err := loader.LoadFromBuffer(image, cfg.DefaultCaps); err != nil {
		fmt.Fprintln(os.Stderr, "dynload-demo: load failed:", err)
		os.Exit(1)
	}
	defer loader.Unload()

	st := loader.Symbols()
	fmt.Printf("loaded %s, %d exported symbols\n", *imagePath, len(st.Names))

	if *symbolFlag != "" {
		addr, err := loader.Resolve(*symbolFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, "dynload-demo:", err)
			os.Exit(1)
		}
		fmt.Printf("%s = 0x%08x\n", *symbolFlag, addr)
	}

	stop := dynload.WatchReloadSignal(loader)
	defer stop()
}

// buildPort constructs one of the simulated chip ports by profile name,
// standing in for the real per-board wiring a firmware's main() would do.
func buildPort(profile string, arch dynload.Arch) (dynload.Port, func(), error) {
	switch profile {
	case "", "hostsim":
		p, err := dynload.NewHostSimPort(0x20000000, 1<<20, arch)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { p.Close() }, nil
	case "unified":
		return dynload.NewUnifiedPort(0x3fc80000, 1<<18, arch), func() {}, nil
	case "fixedoffset":
		return dynload.NewFixedOffsetPort(0x3fc80000, 1<<18, 0x40000000, arch), func() {}, nil
	case "pagemapped":
		return dynload.NewPageMappedPort(0x3f400000, 1<<20, 0x42000000, 32, arch), func() {}, nil
	case "wordonly":
		return dynload.NewWordOnlyPort(0x40080000, 1<<17, 0x3fc80000, 1<<17, arch), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown port profile: %s", profile)
	}
}
