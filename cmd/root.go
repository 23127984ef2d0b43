package cmd

import (
	"errors"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/josephlewis42/forksh/core"
	"github.com/josephlewis42/forksh/core/config"
	"github.com/josephlewis42/forksh/core/logger"
	"github.com/spf13/cobra"
)

var (
	cfgPath   string
	command   string
	pipefail  bool
	verbose   bool
	colorMode string

	// exitCode is the status the process exits with once cobra returns.
	exitCode int
)

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)

	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

// openEvents opens the event log of a persistent configuration. The
// returned closer is never nil.
func openEvents(configuration *config.Configuration) (*logger.SessionLogger, io.Closer, error) {
	if !configuration.EventLog || !configuration.Persistent() {
		return logger.NewDiscardLogger().Sessionless(), io.NopCloser(nil), nil
	}

	fd, err := configuration.OpenEventLog()
	if err != nil {
		return nil, nil, err
	}
	return logger.NewJsonLinesLogRecorder(fd).NewSession(), fd, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "forksh",
	Short: "A small interactive shell with job control",
	Long: `forksh reads command lines and runs them as processes, with pipelines,
redirections, && and || chains and terminal job control.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		// An uninitialized directory still gives a working shell, just
		// without an event log.
		configuration, err := config.LoadOrDefault(cfgPath)
		if err != nil {
			return err
		}
		if pipefail {
			configuration.PipelineStatus = "pipefail"
		}
		if cmd.Flags().Changed("color") {
			configuration.Color = colorMode
		}
		if err := configuration.Validate(); err != nil {
			return err
		}

		debug := log.New(io.Discard, "", 0)
		if verbose {
			debug = log.New(cmd.ErrOrStderr(), "forksh: ", log.Lmicroseconds)
		}

		events, eventsCloser, err := openEvents(configuration)
		if err != nil {
			return err
		}
		defer eventsCloser.Close()

		sh, err := core.NewShell(core.Options{
			Config: configuration,
			Stdin:  os.Stdin,
			Stdout: os.Stdout,
			Stderr: os.Stderr,
			Log:    debug,
			Events: events,
		})
		if err != nil {
			return err
		}
		defer sh.Close()

		if cmd.Flags().Changed("command") {
			sh.RunLine(command)
		} else if err := sh.Interact(); err != nil {
			return err
		}

		exitCode = sh.ExitCode()
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
	os.Exit(exitCode)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config path, empty for the built-in defaults")

	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run one command line and exit")
	rootCmd.Flags().BoolVar(&pipefail, "pipefail", false, "a pipeline fails if any stage fails")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log process and terminal handling to stderr")
	rootCmd.Flags().StringVar(&colorMode, "color", config.ColorAuto, "colour diagnostics: auto, always or never")
}
