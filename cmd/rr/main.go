package main

import (
	"fmt"
	"net"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dcci/rr/pkg/config"
	"github.com/dcci/rr/pkg/experiment"
	"github.com/dcci/rr/pkg/logflags"
	"github.com/dcci/rr/pkg/proc/native"
	"github.com/dcci/rr/service/dbg"
)

const version string = "0.1.0"

var (
	logEnabled bool
	logOutput  string

	tgid    int
	pids    []int
	recTids []int
	listen  string
)

func main() {
	// Main rr root command.
	rootCommand := &cobra.Command{
		Use:   "rr",
		Short: "Drive experimental execution branches of recorded traces.",
	}
	rootCommand.PersistentFlags().BoolVarP(&logEnabled, "log", "", false, "Enable debug logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", "Comma separated list of components that should produce debug output (experiment, remote, dbgwire).")

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("rr experiment controller version: " + version)
		},
	}
	rootCommand.AddCommand(versionCommand)

	// 'experiment' subcommand.
	experimentCommand := &cobra.Command{
		Use:   "experiment",
		Short: "Fork a live execution branch off suspended replay tasks and serve a debugger.",
		Long: `Attaches to threads the replay engine left suspended, accepts one debugger
connection and drives the branch from its requests. Every syscall the branch
attempts is intercepted: stdio writes and desched ioctls are emulated, memory
mapping calls run for real inside the branch, everything else is rejected.`,
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(experimentMain())
		},
	}
	registerExperimentFlags(experimentCommand.Flags())
	rootCommand.AddCommand(experimentCommand)

	rootCommand.Execute()
}

func registerExperimentFlags(flags *pflag.FlagSet) {
	flags.IntVar(&tgid, "tgid", 0, "Thread group id of the suspended branch.")
	flags.IntSliceVar(&pids, "pid", nil, "Tracer-visible tids of the branch's threads; the first one is the initial focus.")
	flags.IntSliceVar(&recTids, "rec-tid", nil, "Recorded tids matching --pid, used in debugger protocol messages.")
	flags.StringVar(&listen, "listen", "localhost:0", "Debugger connection listen address.")
}

func experimentMain() int {
	if err := logflags.Setup(logEnabled, logOutput); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		logflags.SetOutput(colorable.NewColorableStderr())
	}

	if len(pids) == 0 {
		fmt.Fprintln(os.Stderr, "at least one --pid is required")
		return 1
	}
	if len(recTids) != 0 && len(recTids) != len(pids) {
		fmt.Fprintln(os.Stderr, "--rec-tid must be given once per --pid")
		return 1
	}
	if tgid == 0 {
		tgid = pids[0]
	}

	tasks := make(map[int]int, len(pids))
	for i, pid := range pids {
		recTid := pid
		if len(recTids) != 0 {
			recTid = recTids[i]
		}
		tasks[pid] = recTid
	}
	checkpoint := &native.AttachCheckpoint{Tgid: tgid, Tasks: tasks}

	listener, err := net.Listen("tcp", listen)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer listener.Close()
	fmt.Printf("debugger listening at: %s\n", listener.Addr())

	netConn, err := listener.Accept()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	conn := dbg.NewJSONConn(netConn)
	defer conn.Close()

	cfg := config.LoadConfig()
	err = experiment.Run(checkpoint, conn, pids[0], &experiment.Config{
		Channel:             native.NewRemoteChannel(),
		PassThroughSyscalls: cfg.PassThroughSyscalls,
		ForwardStdio:        cfg.ForwardStdioEnabled(),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
