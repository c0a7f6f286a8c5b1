package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/objectfs/treefs/internal/filesystem"
	"github.com/objectfs/treefs/pkg/types"
)

var lsFlags struct {
	recursive bool
	long      bool
}

var lsCmd = &cobra.Command{
	Use:   "ls [PATH]",
	Short: "List a directory",
	Long: `List the entries of a directory. Directories are shown with a trailing
slash. With -r the listing descends into subdirectories depth first.

Names that occur more than once in a directory are listed once per object.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

var statCmd = &cobra.Command{
	Use:   "stat PATH",
	Short: "Show the metadata of a file or directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runStat,
}

var mkdirFlags struct {
	public bool
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir PATH",
	Short: "Create a directory and any missing parents",
	Args:  cobra.ExactArgs(1),
	RunE:  runMkdir,
}

var putFlags struct {
	mimeType string
	public   bool
}

var putCmd = &cobra.Command{
	Use:   "put LOCAL REMOTE",
	Short: "Upload a local file",
	Long: `Upload LOCAL to REMOTE, replacing the content of an existing file.
Missing parent directories are created. Use "-" as LOCAL to read stdin.`,
	Args: cobra.ExactArgs(2),
	RunE: runPut,
}

var catCmd = &cobra.Command{
	Use:   "cat PATH",
	Short: "Print the content of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCat,
}

var mvCmd = &cobra.Command{
	Use:   "mv FROM TO",
	Short: "Move or rename a file or directory",
	Args:  cobra.ExactArgs(2),
	RunE:  runMv,
}

var cpCmd = &cobra.Command{
	Use:   "cp FROM TO",
	Short: "Copy a file",
	Args:  cobra.ExactArgs(2),
	RunE:  runCp,
}

var rmFlags struct {
	recursive bool
}

var rmCmd = &cobra.Command{
	Use:   "rm PATH",
	Short: "Remove a file or directory",
	Long: `Remove a file. Directories need -r and are removed together with
everything below them.`,
	Args: cobra.ExactArgs(1),
	RunE: runRm,
}

var visibilityCmd = &cobra.Command{
	Use:       "visibility PATH [public|private]",
	Short:     "Show or change the visibility of a file or directory",
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{string(types.VisibilityPublic), string(types.VisibilityPrivate)},
	RunE:      runVisibility,
}

func init() {
	rootCmd.AddCommand(lsCmd, statCmd, mkdirCmd, putCmd, catCmd, mvCmd, cpCmd, rmCmd, visibilityCmd)

	lsCmd.Flags().BoolVarP(&lsFlags.recursive, "recursive", "r", false, "List subdirectories recursively")
	lsCmd.Flags().BoolVarP(&lsFlags.long, "long", "l", false, "Show size, modification time and ID")

	mkdirCmd.Flags().BoolVar(&mkdirFlags.public, "public", false, "Make the new directory public")

	putCmd.Flags().StringVar(&putFlags.mimeType, "mime-type", "", "MIME type (guessed from the name by default)")
	putCmd.Flags().BoolVar(&putFlags.public, "public", false, "Make the uploaded file public")

	rmCmd.Flags().BoolVarP(&rmFlags.recursive, "recursive", "r", false, "Remove directories and their contents")
}

func runLs(cmd *cobra.Command, args []string) error {
	path := "/"
	if len(args) == 1 {
		path = args[0]
	}

	return withSession(cmd, func(ctx context.Context, s *session) error {
		out := cmd.OutOrStdout()
		var w *tabwriter.Writer
		if lsFlags.long {
			w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			out = w
		}

		err := s.driver.Walk(ctx, path, lsFlags.recursive, func(e filesystem.DirEntry) error {
			name := e.Name
			if lsFlags.recursive {
				name = e.Path
			}
			if e.IsDir {
				name += "/"
			}
			if !lsFlags.long {
				_, err := fmt.Fprintln(out, name)
				return err
			}
			size := "-"
			if !e.IsDir {
				size = humanize.Bytes(uint64(max(e.Size, 0)))
			}
			_, err := fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n",
				e.Mode, size, humanize.Time(e.ModTime), e.ID, name)
			return err
		})
		if err != nil {
			return err
		}
		if w != nil {
			return w.Flush()
		}
		return nil
	})
}

func runStat(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		info, err := s.driver.Stat(ctx, args[0])
		if err != nil {
			return err
		}

		kind := "file"
		if info.IsDir() {
			kind = "directory"
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 1, ' ', 0)
		fmt.Fprintf(w, "Path:\t%s\n", info.Path)
		fmt.Fprintf(w, "ID:\t%s\n", info.ID)
		fmt.Fprintf(w, "Type:\t%s\n", kind)
		if !info.IsDir() {
			fmt.Fprintf(w, "Size:\t%s (%d bytes)\n", humanize.Bytes(uint64(max(info.Size(), 0))), info.Size())
		}
		fmt.Fprintf(w, "Mode:\t%s\n", info.Mode())
		fmt.Fprintf(w, "Modified:\t%s (%s)\n", info.ModTime().Format("2006-01-02 15:04:05 MST"), humanize.Time(info.ModTime()))
		fmt.Fprintf(w, "Visibility:\t%s\n", info.Visibility)
		if info.MimeType != "" {
			fmt.Fprintf(w, "MIME type:\t%s\n", info.MimeType)
		}
		if info.ExportMimeType != "" {
			fmt.Fprintf(w, "Exports as:\t%s\n", info.ExportMimeType)
		}
		if len(info.Parents) > 0 {
			fmt.Fprintf(w, "Parents:\t%s\n", strings.Join(info.Parents, ", "))
		}
		return w.Flush()
	})
}

func runMkdir(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		var opts filesystem.MkdirOptions
		if mkdirFlags.public {
			opts.Visibility = types.VisibilityPublic
		}
		info, err := s.driver.Mkdir(ctx, args[0], opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", info.ID, info.Path)
		return nil
	})
}

func runPut(cmd *cobra.Command, args []string) error {
	local, remote := args[0], args[1]

	var in io.Reader
	if local == "-" {
		in = cmd.InOrStdin()
	} else {
		f, err := os.Open(local)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", local, err)
		}
		defer f.Close()
		in = f
	}

	return withSession(cmd, func(ctx context.Context, s *session) error {
		opts := filesystem.WriteOptions{MimeType: putFlags.mimeType}
		if putFlags.public {
			opts.Visibility = types.VisibilityPublic
		}
		info, err := s.driver.WriteFile(ctx, remote, in, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", info.ID, humanize.Bytes(uint64(max(info.Size(), 0))), info.Path)
		return nil
	})
}

func runCat(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		rc, err := s.driver.ReadFile(ctx, args[0])
		if err != nil {
			return err
		}
		defer rc.Close()

		_, err = io.Copy(cmd.OutOrStdout(), rc)
		return err
	})
}

func runMv(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		return s.driver.Rename(ctx, args[0], args[1])
	})
}

func runCp(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		return s.driver.Copy(ctx, args[0], args[1])
	})
}

func runRm(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		if rmFlags.recursive {
			return s.driver.RemoveAll(ctx, args[0])
		}
		return s.driver.Remove(ctx, args[0])
	})
}

func runVisibility(cmd *cobra.Command, args []string) error {
	var want types.Visibility
	if len(args) == 2 {
		v, ok := types.ParseVisibility(args[1])
		if !ok {
			return fmt.Errorf("invalid visibility %q (expected public or private)", args[1])
		}
		want = v
	}

	return withSession(cmd, func(ctx context.Context, s *session) error {
		if want != "" {
			return s.driver.SetVisibility(ctx, args[0], want)
		}
		v, err := s.driver.Visibility(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	})
}
