// Package cmd provides the CLI commands for remotefs.
package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/remotefs/internal/config"
	"github.com/Aman-CERP/remotefs/internal/daemon"
	fserrors "github.com/Aman-CERP/remotefs/internal/errors"
	"github.com/Aman-CERP/remotefs/internal/logging"
	"github.com/Aman-CERP/remotefs/internal/provider"
	"github.com/Aman-CERP/remotefs/internal/vfs"
	"github.com/Aman-CERP/remotefs/pkg/version"
)

// Persistent flags
var (
	debugMode      bool
	socketPath     string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the remotefs CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remotefs",
		Short: "Remote-backed file system provider",
		Long: `remotefs serves a local directory to remote file system clients.

The daemon owns the directory and answers file operations, streaming reads
and watch sessions over a Unix socket. The other commands are thin clients
of the daemon: paths are resolved against the directory it serves.

Start with 'remotefs daemon start' in the directory to serve.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("remotefs version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable trace logging to ~/.remotefs/logs/")
	cmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Daemon socket path (overrides configuration)")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newDaemonCmd())

	cmd.AddCommand(newStatCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newCatCmd())
	cmd.AddCommand(newPutCmd())
	cmd.AddCommand(newRmCmd())
	cmd.AddCommand(newMvCmd())
	cmd.AddCommand(newCpCmd())
	cmd.AddCommand(newMkdirCmd())
	cmd.AddCommand(newWatchCmd())

	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging enables file logging at trace level when --debug is set.
func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, _, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("Debug logging enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("version", version.Short()))
	return nil
}

// stopLogging closes the debug log file.
func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		slog.Info("Debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command. Interrupts cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		printError(root.ErrOrStderr(), err)
	}
	return err
}

// printError writes err for a terminal. File system errors carry their code.
func printError(w io.Writer, err error) {
	var fe *fserrors.FileSystemError
	if stderrors.As(err, &fe) {
		_, _ = fmt.Fprint(w, fserrors.FormatForCLI(err))
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
}

// loadConfig loads the layered configuration for the working directory and
// applies --socket.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if socketPath != "" {
		cfg.Daemon.SocketPath = socketPath
	}
	return cfg, nil
}

// withProvider runs fn against a provider connected to the daemon.
func withProvider(cmd *cobra.Command, fn func(ctx context.Context, fsp *provider.IPCProvider) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := daemon.NewClient(cfg.DaemonConfig())
	fsp := provider.NewIPCProvider(client, provider.IPCOptions{
		Logger:        slog.Default(),
		HighWaterMark: cfg.Provider.StreamHighWaterMark,
	})
	defer fsp.Dispose()

	return fn(cmd.Context(), fsp)
}

// resourceArg converts a CLI argument to a resource. Plain paths are
// resolved against the served root; URIs are used as given.
func resourceArg(arg string) (vfs.URI, error) {
	if strings.Contains(arg, "://") {
		return vfs.ParseURI(arg)
	}
	if arg == "" {
		return vfs.URI{}, fserrors.InvalidInput("empty path")
	}
	return vfs.URI{Scheme: vfs.SchemeFile, Path: path.Clean("/" + filepath.ToSlash(arg))}, nil
}
