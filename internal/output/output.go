// Package output provides consistent CLI output formatting. Icons and
// colours are only used when writing to a terminal.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/remotefs/internal/vfs"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out   io.Writer
	fancy bool
}

// New creates a Writer. Icons and colours are enabled when out is a
// terminal.
func New(out io.Writer) *Writer {
	return &Writer{out: out, fancy: IsTerminal(out)}
}

// NewPlain creates a Writer that never emits icons or colours.
func NewPlain(out io.Writer) *Writer {
	return &Writer{out: out}
}

// IsTerminal reports whether w is an *os.File attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	w.Status(w.pick("✅", "ok:"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.pick("⚠️ ", "warning:"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.pick("❌", "error:"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Code prints a block with indentation.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Stat prints the metadata of one resource.
func (w *Writer) Stat(resource vfs.URI, st vfs.Stat) {
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "resource:\t%s\n", resource)
	_, _ = fmt.Fprintf(tw, "type:\t%s\n", st.Type)
	_, _ = fmt.Fprintf(tw, "size:\t%s\n", FormatBytes(st.Size))
	_, _ = fmt.Fprintf(tw, "modified:\t%s\n", formatMillis(st.Mtime))
	_, _ = fmt.Fprintf(tw, "created:\t%s\n", formatMillis(st.Ctime))
	if st.Permissions&vfs.PermissionReadonly != 0 {
		_, _ = fmt.Fprintf(tw, "permissions:\treadonly\n")
	}
	_ = tw.Flush()
}

// Entries prints a directory listing, one entry per line.
func (w *Writer) Entries(entries []vfs.DirEntry) {
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		name := e.Name
		if e.Type.IsDir() {
			name += "/"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", e.Type, name)
	}
	_ = tw.Flush()
}

// Changes prints one line per change of a batch.
func (w *Writer) Changes(changes []vfs.FileChange) {
	for _, c := range changes {
		label := changeLabel(c.Type)
		if w.fancy {
			label = changeColor(c.Type) + label + ansiReset
		}
		_, _ = fmt.Fprintf(w.out, "%s %s\n", label, c.Resource.Path)
	}
}

func (w *Writer) pick(icon, plain string) string {
	if w.fancy {
		return icon
	}
	return plain
}

func changeLabel(t vfs.ChangeType) string {
	switch t {
	case vfs.ChangeAdded:
		return "added  "
	case vfs.ChangeDeleted:
		return "deleted"
	default:
		return "updated"
	}
}

func changeColor(t vfs.ChangeType) string {
	switch t {
	case vfs.ChangeAdded:
		return ansiGreen
	case vfs.ChangeDeleted:
		return ansiRed
	default:
		return ansiYellow
	}
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format(time.RFC3339)
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
