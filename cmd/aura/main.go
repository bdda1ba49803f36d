package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"aura/internal/config"
	"aura/internal/desktop"
	"aura/internal/journal"
	"aura/internal/logging"
	"aura/internal/types"
)

var (
	configPath string
	verbose    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "aura",
	Short: "aura - voice-first desktop automation assistant",
	Long: `aura turns spoken (or typed) commands into desktop actions: clicking
controls, answering questions about what's on screen, chatting, and
generating content that is placed wherever you click next.

Run without arguments to start the interactive prompt.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		loaded = cfg
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCmd.RunE(cmd, args)
	},
}

// loaded is the configuration resolved in PersistentPreRunE.
var loaded *config.Config

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the interactive command prompt",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loaded.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, loaded, logger)
		if err != nil {
			return err
		}
		defer a.close()

		return repl(ctx, a)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent commands from the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("count")
		j, err := journal.Open(loaded.Journal.Path, logger)
		if err != nil {
			return err
		}
		defer j.Close()

		entries, err := j.Recent(cmd.Context(), n)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no commands recorded yet")
			return nil
		}
		for _, e := range entries {
			marker := "ok"
			if e.Status == string(types.StatusError) {
				marker = "err"
			} else if e.Status == string(types.StatusWaitingForUser) {
				marker = "wait"
			}
			fmt.Printf("%s  [%-4s] %-20s %s\n",
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"), marker, e.Intent, e.Utterance)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the aura version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", loaded.Name, loaded.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "aura.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	historyCmd.Flags().IntP("count", "n", 20, "Number of entries to show")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// repl reads commands from stdin until EOF or a signal. A bare "place"
// stands in for the global click hook: it reports the current pointer
// position to the armed deferred action.
func repl(ctx context.Context, a *app) error {
	fmt.Printf("%s %s — type a command, 'place' to drop pending content at the pointer, 'exit' to quit\n",
		a.cfg.Name, a.cfg.Version)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("aura> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return nil
		case line == "place":
			triggerPlacement(ctx, a)
			continue
		}

		res := a.orch.Execute(ctx, line)
		printResult(res)
	}
}

// triggerPlacement feeds the pointer position to the armed deferred
// action, standing in for a native global click hook.
func triggerPlacement(ctx context.Context, a *app) {
	if !a.mouse.Armed() {
		fmt.Println("nothing is waiting to be placed")
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	p, err := desktop.PointerLocation(pctx)
	cancel()
	if err != nil {
		a.logger.Warn("pointer location unavailable", zap.Error(err))
		fmt.Println("couldn't read the pointer position:", err)
		return
	}
	if a.mouse.Trigger(p) {
		fmt.Printf("placing at (%d, %d)...\n", p.X, p.Y)
	} else {
		fmt.Println("the pending action expired")
	}
}

func printResult(res types.HandlerResult) {
	switch res.Status {
	case types.StatusSuccess:
		fmt.Println(res.Message)
	case types.StatusWaitingForUser:
		fmt.Printf("%s (type 'place' when your pointer is where you want it)\n", res.Message)
	default:
		if res.Err != nil && res.Err.Hint != "" {
			fmt.Printf("error: %s (%s)\n", res.Message, res.Err.Hint)
		} else {
			fmt.Printf("error: %s\n", res.Message)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
