// Package main provides a command-line client for the file explorer API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dabendan2/file-explorer/internal/client"
	"github.com/dabendan2/file-explorer/internal/logging"
	"github.com/dabendan2/file-explorer/internal/models"
	"github.com/dabendan2/file-explorer/internal/storage/local"
	"github.com/dabendan2/file-explorer/internal/version"
)

func main() {
	logging.InitNop()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cli carries what every subcommand needs.
type cli struct {
	c      *client.Client
	out    io.Writer
	errOut io.Writer
	mode   string
	asJSON bool
}

// run parses args, executes one subcommand and returns the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("explorer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	serverURL := fs.String("server", envOr("EXPLORER_URL", "http://localhost:8080/file-explorer"), "Server URL including base path")
	mode := fs.String("mode", "", "Backend mode: local or remote")
	timeout := fs.Duration("timeout", 30*time.Second, "Request timeout")
	retries := fs.Int("retries", 2, "Retries on transport errors and 503")
	asJSON := fs.Bool("json", false, "Print raw JSON")
	verbose := fs.Bool("v", false, "Log client activity to stderr")
	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *verbose {
		if err := logging.Init(logging.Config{Level: "debug", Format: "console", OutputPath: "stderr"}); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stderr, fs)
		return 1
	}
	if rest[0] == "help" {
		printUsage(stdout, fs)
		return 0
	}

	c, err := client.New(client.Config{
		BaseURL:  *serverURL,
		Timeout:  *timeout,
		RetryMax: *retries,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	app := &cli{c: c, out: stdout, errOut: stderr, mode: *mode, asJSON: *asJSON}
	if err := app.dispatch(ctx, rest[0], rest[1:]); err != nil {
		if errors.Is(err, errUnknownCommand) {
			fmt.Fprintf(stderr, "Unknown command: %s\n", rest[0])
			printUsage(stderr, fs)
			return 1
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

var errUnknownCommand = errors.New("unknown command")

func (a *cli) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "ls", "list":
		return a.list(ctx, args)
	case "cat":
		return a.cat(ctx, args)
	case "rm", "delete":
		return a.delete(ctx, args)
	case "mv", "rename":
		return a.rename(ctx, args)
	case "star":
		return a.star(ctx, args, true)
	case "unstar":
		return a.star(ctx, args, false)
	case "stars":
		return a.stars(ctx)
	case "search", "find":
		return a.search(ctx, args)
	case "watch":
		return a.watch(ctx, args)
	case "version":
		return a.version(ctx)
	case "health", "ping":
		return a.health(ctx)
	default:
		return errUnknownCommand
	}
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: explorer [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  ls [path] [pattern]     List a directory (starred first)")
	fmt.Fprintln(w, "  cat <path|id>           Write file content to stdout")
	fmt.Fprintln(w, "  rm <path>               Delete a file or directory")
	fmt.Fprintln(w, "  mv <old> <new>          Rename or move")
	fmt.Fprintln(w, "  star <path>...          Star paths")
	fmt.Fprintln(w, "  unstar <path>...        Remove stars")
	fmt.Fprintln(w, "  stars                   List starred paths")
	fmt.Fprintln(w, "  search <query> [limit]  Find names under the root")
	fmt.Fprintln(w, "  watch [path]            Follow change events")
	fmt.Fprintln(w, "  version                 Show server build and skew")
	fmt.Fprintln(w, "  health                  Check server health")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fs.SetOutput(w)
	fs.PrintDefaults()
}

func (a *cli) list(ctx context.Context, args []string) error {
	opts := client.ListOptions{Mode: a.mode, Order: "starred"}
	if len(args) > 0 {
		opts.Path = args[0]
	}
	if len(args) > 1 {
		opts.Pattern = args[1]
	}

	entries, err := a.c.List(ctx, opts)
	if err != nil {
		return err
	}
	if a.asJSON {
		return a.printJSON(entries)
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tSIZE\tMODIFIED\tNAME")
	for _, e := range entries {
		name := e.Name
		if e.Starred {
			name = "* " + name
		}
		if e.ID != "" && e.ID != e.Name {
			name += " (" + e.ID + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Type, formatSize(e.Size), e.Modified, name)
	}
	return w.Flush()
}

func (a *cli) cat(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cat <path|id>")
	}
	body, _, err := a.c.Content(ctx, args[0], a.mode)
	if err != nil {
		return err
	}
	defer body.Close()
	_, err = io.Copy(a.out, body)
	return err
}

func (a *cli) delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: rm <path>")
	}
	if err := a.c.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted: %s\n", args[0])
	return nil
}

func (a *cli) rename(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: mv <old> <new>")
	}
	if err := a.c.Rename(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Renamed: %s -> %s\n", args[0], args[1])
	return nil
}

func (a *cli) star(ctx context.Context, args []string, starred bool) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: star|unstar <path>...")
	}
	for _, p := range args {
		sr, err := a.c.Star(ctx, p, starred)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		if sr.Starred {
			fmt.Fprintf(a.out, "Starred: %s\n", sr.Path)
		} else {
			fmt.Fprintf(a.out, "Unstarred: %s\n", sr.Path)
		}
	}
	return nil
}

func (a *cli) stars(ctx context.Context) error {
	paths, err := a.c.Stars(ctx)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintln(a.out, "No starred paths")
		return nil
	}
	for _, p := range paths {
		fmt.Fprintln(a.out, p)
	}
	return nil
}

func (a *cli) search(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: search <query> [limit]")
	}
	opts := local.SearchOptions{Query: args[0]}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid limit: %s", args[1])
		}
		opts.Limit = n
	}

	results, err := a.c.Search(ctx, "", opts)
	if err != nil {
		return err
	}
	if a.asJSON {
		return a.printJSON(results)
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tSIZE\tPATH")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Entry.Type, formatSize(r.Entry.Size), r.Path)
	}
	return w.Flush()
}

func (a *cli) watch(ctx context.Context, args []string) error {
	var path string
	if len(args) > 0 {
		path = args[0]
	}
	evs, errs := a.c.Watcher(path).Subscribe(ctx)
	for {
		select {
		case ev, ok := <-evs:
			if !ok {
				return nil
			}
			ts := time.Unix(ev.Timestamp, 0).Format(time.TimeOnly)
			switch {
			case ev.NewPath != "":
				fmt.Fprintf(a.out, "%s %-7s %s -> %s\n", ts, ev.Type, ev.Path, ev.NewPath)
			case ev.Starred != nil:
				fmt.Fprintf(a.out, "%s %-7s %s starred=%t\n", ts, ev.Type, ev.Path, *ev.Starred)
			default:
				fmt.Fprintf(a.out, "%s %-7s %s\n", ts, ev.Type, ev.Path)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				fmt.Fprintf(a.errOut, "stream interrupted: %v\n", err)
			}
		}
	}
}

func (a *cli) version(ctx context.Context) error {
	mine := version.Get()
	stale, server, err := a.c.CheckVersion(ctx, mine.BuildID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Client: %s (%s)\n", mine.BuildID, mine.GoVersion)
	fmt.Fprintf(a.out, "Server: %s (%s)\n", server.BuildID, server.GoVersion)
	if server.Root != "" {
		fmt.Fprintf(a.out, "Root:   %s\n", server.Root)
	}
	if stale {
		fmt.Fprintln(a.out, "Client and server builds differ")
	}
	return nil
}

func (a *cli) health(ctx context.Context) error {
	h, err := a.c.Ping(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Status:       %s\n", h.Status)
	if h.RemoteBackend != "" {
		fmt.Fprintf(a.out, "Remote:       %s\n", h.RemoteBackend)
	}
	if h.RootTotalBytes > 0 {
		fmt.Fprintf(a.out, "Disk free:    %s of %s\n", formatBytes(int64(h.RootFreeBytes)), formatBytes(int64(h.RootTotalBytes)))
	}
	fmt.Fprintf(a.out, "SSE clients:  %d\n", h.SSEClients)
	return nil
}

func (a *cli) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatSize(s models.Size) string {
	if !s.Known() {
		return "-"
	}
	return formatBytes(int64(s))
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
