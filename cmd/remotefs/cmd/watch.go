package cmd

import (
	"context"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/remotefs/internal/output"
	"github.com/Aman-CERP/remotefs/internal/provider"
	"github.com/Aman-CERP/remotefs/internal/vfs"
)

func newWatchCmd() *cobra.Command {
	var (
		recursive bool
		excludes  []string
	)

	cmd := &cobra.Command{
		Use:   "watch PATH",
		Short: "Print changes until interrupted",
		Long: `Watch a file or directory and print each change batch.

Without --recursive only the resource itself (or the direct children of a
directory) is watched. Exclusions are glob patterns relative to PATH.`,
		Example: `  remotefs watch -r src --exclude "**/*.tmp"
  remotefs watch notes/todo.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resourceArg(args[0])
			if err != nil {
				return err
			}
			return withProvider(cmd, func(ctx context.Context, fsp *provider.IPCProvider) error {
				return runWatch(ctx, cmd, fsp, res, vfs.WatchOptions{Recursive: recursive, Excludes: excludes})
			})
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Watch the whole subtree")
	cmd.Flags().StringArrayVar(&excludes, "exclude", nil, "Glob of paths to ignore (repeatable)")
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, fsp *provider.IPCProvider, res vfs.URI, opts vfs.WatchOptions) error {
	var mu sync.Mutex
	out := output.New(cmd.OutOrStdout())
	errOut := output.New(cmd.ErrOrStderr())

	changes := fsp.OnDidChangeFile(func(batch []vfs.FileChange) {
		mu.Lock()
		defer mu.Unlock()
		out.Changes(batch)
	})
	defer changes.Dispose()

	errs := fsp.OnDidErrorOccur(func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		errOut.Warning(msg)
	})
	defer errs.Dispose()

	watch, err := fsp.Watch(ctx, res, opts)
	if err != nil {
		return err
	}
	defer watch.Dispose()

	<-ctx.Done()
	return nil
}
