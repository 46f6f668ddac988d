package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/remotefs/internal/output"
	"github.com/Aman-CERP/remotefs/internal/provider"
	"github.com/Aman-CERP/remotefs/internal/vfs"
)

func newStatCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stat PATH",
		Short: "Show metadata of a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resourceArg(args[0])
			if err != nil {
				return err
			}
			return withProvider(cmd, func(ctx context.Context, fsp *provider.IPCProvider) error {
				st, err := fsp.Stat(ctx, res)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, st)
				}
				output.New(cmd.OutOrStdout()).Stat(res, st)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [PATH]",
		Short: "List a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := "/"
			if len(args) == 1 {
				arg = args[0]
			}
			res, err := resourceArg(arg)
			if err != nil {
				return err
			}
			return withProvider(cmd, func(ctx context.Context, fsp *provider.IPCProvider) error {
				entries, err := fsp.ReadDir(ctx, res)
				if err != nil {
					return err
				}
				slices.SortFunc(entries, func(a, b vfs.DirEntry) int {
					return strings.Compare(a.Name, b.Name)
				})
				output.New(cmd.OutOrStdout()).Entries(entries)
				return nil
			})
		},
	}
	return cmd
}

func newCatCmd() *cobra.Command {
	var (
		offset int64
		length int64
	)

	cmd := &cobra.Command{
		Use:   "cat PATH",
		Short: "Stream a file to stdout",
		Long: `Stream a file to stdout.

The file is read as a stream of chunks; Ctrl+C cancels the read.`,
		Example: `  remotefs cat docs/readme.md
  remotefs cat --offset 100 --length 20 data.bin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resourceArg(args[0])
			if err != nil {
				return err
			}
			return withProvider(cmd, func(ctx context.Context, fsp *provider.IPCProvider) error {
				stream := fsp.ReadFileStream(ctx, res, vfs.ReadStreamOptions{Position: offset, Length: length})
				defer stream.Close()
				_, err := io.Copy(cmd.OutOrStdout(), stream)
				return err
			})
		},
	}

	cmd.Flags().Int64Var(&offset, "offset", 0, "Position of the first byte")
	cmd.Flags().Int64Var(&length, "length", -1, "Number of bytes to read (-1 reads to the end)")
	return cmd
}

func newPutCmd() *cobra.Command {
	var (
		noClobber bool
		unlock    bool
	)

	cmd := &cobra.Command{
		Use:   "put PATH",
		Short: "Write stdin to a file",
		Example: `  echo hello | remotefs put notes/hello.txt
  remotefs put --no-clobber data.bin < data.bin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resourceArg(args[0])
			if err != nil {
				return err
			}
			content, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			return withProvider(cmd, func(ctx context.Context, fsp *provider.IPCProvider) error {
				return fsp.WriteFile(ctx, res, content, vfs.WriteOptions{
					Create:    true,
					Overwrite: !noClobber,
					Unlock:    unlock,
				})
			})
		},
	}

	cmd.Flags().BoolVar(&noClobber, "no-clobber", false, "Fail if the file exists")
	cmd.Flags().BoolVar(&unlock, "unlock", false, "Clear the readonly flag before writing")
	return cmd
}

func newRmCmd() *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "rm PATH",
		Short: "Delete a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resourceArg(args[0])
			if err != nil {
				return err
			}
			return withProvider(cmd, func(ctx context.Context, fsp *provider.IPCProvider) error {
				return fsp.Delete(ctx, res, vfs.DeleteOptions{Recursive: recursive})
			})
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Delete directories and their contents")
	return cmd
}

// newTransferCmd builds mv and cp, which share arguments and flags.
func newTransferCmd(use, short string, op func(fsp *provider.IPCProvider) func(context.Context, vfs.URI, vfs.URI, vfs.OverwriteOptions) error) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   use + " SRC DST",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := resourceArg(args[0])
			if err != nil {
				return err
			}
			to, err := resourceArg(args[1])
			if err != nil {
				return err
			}
			return withProvider(cmd, func(ctx context.Context, fsp *provider.IPCProvider) error {
				return op(fsp)(ctx, from, to, vfs.OverwriteOptions{Overwrite: force})
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite the destination")
	return cmd
}

func newMvCmd() *cobra.Command {
	return newTransferCmd("mv", "Rename a file or directory", func(fsp *provider.IPCProvider) func(context.Context, vfs.URI, vfs.URI, vfs.OverwriteOptions) error {
		return fsp.Rename
	})
}

func newCpCmd() *cobra.Command {
	return newTransferCmd("cp", "Copy a file or directory", func(fsp *provider.IPCProvider) func(context.Context, vfs.URI, vfs.URI, vfs.OverwriteOptions) error {
		return fsp.Copy
	})
}

func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir PATH",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resourceArg(args[0])
			if err != nil {
				return err
			}
			return withProvider(cmd, func(ctx context.Context, fsp *provider.IPCProvider) error {
				return fsp.Mkdir(ctx, res)
			})
		},
	}
}
