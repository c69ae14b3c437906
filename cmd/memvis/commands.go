//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/pkg/profile"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"memvis/config"
	"memvis/console"
	"memvis/logflags"
	"memvis/process"
	"memvis/process/memory_map"
	"memvis/process_linux"
	"memvis/sampler"
	"memvis/snapshot"
)

// options holds the raw command line; config values are only overridden
// by flags that were set.
type options struct {
	pid          int
	name         string
	startAddress string
	width        int
	height       int
	noPtrace     bool
	printBytes   bool
	period       time.Duration
	frameRate    int
	backend      string
	logDest      string
	debug        bool
	configFile   string
	profileMode  string
}

func newCommand() (*cobra.Command, *options) {
	o := &options{}
	rootCommand := &cobra.Command{
		Use:   "memvis",
		Short: "memvis shows the live address space of a process.",
		Long: `memvis samples the mapped memory of a running process every period and
shows it as one scrollable table, with gaps between mappings read as zero.

Keys: up/down scroll a row, left/right move to the previous/next mapping,
PgUp/PgDn scroll a page, j jumps to a hex address, a toggles ASCII/hex,
q quits.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, o)
			if err != nil {
				return err
			}
			return run(cmd.Context(), o, cfg)
		},
	}

	flags := rootCommand.Flags()
	flags.IntVarP(&o.pid, "pid", "p", 0, "Process ID to inspect.")
	flags.StringVar(&o.name, "name", "", "Inspect the process with this name (lowest pid wins).")
	flags.StringVarP(&o.startAddress, "start-address", "s", "", "Hex address to start at (default: the stack pointer).")
	flags.IntVarP(&o.width, "width", "j", 0, "Bytes per row.")
	flags.IntVarP(&o.height, "height", "i", 0, "Rows per page.")
	flags.BoolVarP(&o.noPtrace, "no-ptrace", "n", false, "Read the stack pointer from /proc/<pid>/syscall instead of ptrace.")
	flags.BoolVarP(&o.printBytes, "print-bytes", "b", false, "Show every byte as hex instead of printable characters.")
	flags.DurationVar(&o.period, "period", 0, "Time between two samples.")
	flags.IntVar(&o.frameRate, "frame-rate", 0, "Frames drawn per second.")
	flags.StringVar(&o.backend, "backend", "", "Memory backend: procfs or vm-readv.")
	flags.StringVar(&o.logDest, "log-dest", "", "Write logs to this file.")
	flags.BoolVar(&o.debug, "debug", false, "Log at debug level.")
	flags.StringVar(&o.configFile, "config", "", "Configuration file (default $HOME/.memvis/config.yml).")
	flags.StringVar(&o.profileMode, "profile", "", "Profile memvis itself: cpu or mem.")

	return rootCommand, o
}

// loadConfig reads the configuration file and applies the flags that were
// set on top of it.
func loadConfig(cmd *cobra.Command, o *options) (*config.Config, error) {
	file := o.configFile
	if file == "" {
		file = config.DefaultConfigFile()
	}
	cfg, err := config.LoadConfig(afero.NewOsFs(), file)
	if err != nil {
		return nil, err
	}

	cmd.Flags().Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "width":
			cfg.Width = o.width
		case "height":
			cfg.Height = o.height
		case "print-bytes":
			cfg.ASCII = !o.printBytes
		case "no-ptrace":
			if o.noPtrace {
				cfg.StackPointer = process_linux.StrategySyscall
			}
		case "period":
			cfg.Period = o.period
		case "frame-rate":
			cfg.FrameRate = o.frameRate
		case "backend":
			cfg.Backend = o.backend
		case "log-dest":
			cfg.LogDest = o.logDest
		case "debug":
			cfg.Debug = o.debug
		}
	})

	if o.pid == 0 && o.name == "" {
		return nil, errors.New("one of --pid or --name is required")
	}
	if o.pid != 0 && o.name != "" {
		return nil, errors.New("--pid and --name are mutually exclusive")
	}
	if o.startAddress != "" {
		if _, err := memory_map.ParseHex(o.startAddress); err != nil {
			return nil, fmt.Errorf("invalid --start-address %q: %w", o.startAddress, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func startProfile(mode string) (interface{ Stop() }, error) {
	switch mode {
	case "":
		return nil, nil
	case "cpu":
		return profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook), nil
	case "mem":
		return profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook), nil
	}
	return nil, fmt.Errorf("unknown profile mode %q (want cpu or mem)", mode)
}

func resolvePID(fs afero.Fs, o *options) (process.ProcessID, error) {
	if o.pid != 0 {
		return process.ProcessID(o.pid), nil
	}
	p, err := process_linux.OneByName(fs, o.name)
	if err != nil {
		return 0, err
	}
	return p.PID, nil
}

// startAddress picks the first address shown: the flag, else the stack
// pointer, else the start of the stack mapping or of the first mapping.
func startAddress(o *options, reader *process_linux.Reader, regions []memory_map.RegionDescriptor, log *logger.Logger) process.ProcessMemoryAddress {
	if o.startAddress != "" {
		addr, _ := memory_map.ParseHex(o.startAddress)
		return process.ProcessMemoryAddress(addr)
	}

	sp, err := reader.StackPointer()
	if err == nil {
		return sp
	}
	log.Infoln("Unable to read the stack pointer, starting at the stack mapping:", err)

	for _, r := range regions {
		if r.IsStack() {
			return process.ProcessMemoryAddress(r.Start)
		}
	}
	if len(regions) > 0 {
		return process.ProcessMemoryAddress(regions[0].Start)
	}
	return 0
}

func run(ctx context.Context, o *options, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := logflags.Setup(cfg.LogDest, cfg.Debug); err != nil {
		return fmt.Errorf("setting up log file: %w", err)
	}
	defer logflags.Close()

	prof, err := startProfile(o.profileMode)
	if err != nil {
		return err
	}
	if prof != nil {
		defer prof.Stop()
	}

	fs := afero.NewOsFs()
	pid, err := resolvePID(fs, o)
	if err != nil {
		return err
	}
	log := logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("memvis-%d", pid)))

	resolver, err := process_linux.NewStackPointerResolver(cfg.StackPointer, fs)
	if err != nil {
		return err
	}
	backend, err := process_linux.NewMemoryBackend(cfg.Backend, fs)
	if err != nil {
		return err
	}
	reader, err := process_linux.NewReader(pid,
		process_linux.WithFs(fs),
		process_linux.WithStackPointerResolver(resolver),
		process_linux.WithMemoryBackend(backend),
	)
	if err != nil {
		return err
	}

	regions, err := reader.ListRegions()
	if err != nil {
		return fmt.Errorf("cannot read the memory map of process %d: %w", pid, err)
	}
	if st, err := reader.Status(); err == nil {
		log.Infoln("Attached to", st.String())
	}
	log.Infoln("Sampling", len(regions), "mappings every", cfg.Period, "- stack pointer via", cfg.StackPointer, "memory via", cfg.Backend, "- redraw every", cfg.FrameInterval())

	start := startAddress(o, reader, regions, log)

	if !isatty.IsTerminal(os.Stdin.Fd()) || !isatty.IsTerminal(os.Stdout.Fd()) {
		return errors.New("memvis needs an interactive terminal")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, unix.SIGTERM)
	defer stop()

	store := snapshot.NewStore()
	s := sampler.New(reader, store, cfg.Period)
	s.Start(ctx)
	defer s.Stop()

	tty, err := console.OpenTTY(os.Stdin, colorable.NewColorableStdout())
	if err != nil {
		return err
	}
	view := console.New(reader.PID(), store, start, console.Options{
		Width:     cfg.Width,
		Height:    cfg.Height,
		ASCII:     cfg.ASCII,
		FrameRate: cfg.FrameRate,
		Stats:     s.Stats,
	})

	runErr := view.Run(ctx, tty)
	if err := tty.Close(); err != nil && runErr == nil {
		runErr = err
	}

	stats := s.Stats()
	log.Infoln("Detached after", stats.Cycles, "samples,", stats.Failures, "failed")
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}
