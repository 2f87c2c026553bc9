package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/scigolib/h5store"
)

var errUsage = errors.New("bad usage")

// app runs one command.
type app struct {
	cfg *Config
	log *slog.Logger
	out io.Writer
}

type command struct {
	args string
	help string
}

var commands = map[string]command{
	"ls":    {"[-r] file [group]", "list a group"},
	"info":  {"file path", "describe a group or dataset"},
	"cat":   {"[-n max] file path[@attr]", "print a dataset or attribute"},
	"cp":    {"[-level n] [-codec c] [-shuffle] src path dst path", "copy a group or dataset"},
	"rm":    {"file path[@attr]...", "delete groups, datasets or attributes"},
	"mkdir": {"file group...", "create groups and their parents"},
}

var order = []string{"ls", "info", "cat", "cp", "rm", "mkdir"}

func usage() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	for _, name := range order {
		c := commands[name]
		fmt.Fprintf(w, "  %s %s\t%s\n", name, c.args, c.help)
	}
	_ = w.Flush()
	return b.String()
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}
	rest := args[1:]
	switch args[0] {
	case "ls":
		return a.ls(ctx, rest)
	case "info":
		return a.info(ctx, rest)
	case "cat":
		return a.cat(ctx, rest)
	case "cp":
		return a.cp(ctx, rest)
	case "rm":
		return a.rm(ctx, rest)
	case "mkdir":
		return a.mkdir(ctx, rest)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

// flags returns the flag set of a command. Parse errors are reported by
// the caller.
func flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string, minArgs, maxArgs int) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %w", errUsage, fs.Name(), err)
	}
	if n := fs.NArg(); n < minArgs || (maxArgs >= 0 && n > maxArgs) {
		return fmt.Errorf("%w: h5ctl %s %s", errUsage, fs.Name(), commands[fs.Name()].args)
	}
	return nil
}

func (a *app) open(file string, mode h5store.Mode) (*h5store.Container, error) {
	opts := []h5store.Option{h5store.WithLogger(a.log)}
	if a.cfg.Workers > 0 {
		opts = append(opts, h5store.WithDefaultWorkers(a.cfg.Workers))
	}
	return h5store.Open(file, mode, opts...)
}

// closeInto closes c, keeping the first error.
func closeInto(c *h5store.Container, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

// absPath anchors p at the root group.
func absPath(p string) (string, error) {
	n, err := h5store.Normalize(p)
	if err != nil {
		return "", err
	}
	return "/" + strings.TrimPrefix(n, "/"), nil
}

// splitAttr splits "owner@name" into its parts.
func splitAttr(p string) (owner, name string, ok bool) {
	i := strings.LastIndexByte(p, '@')
	if i < 0 {
		return p, "", false
	}
	return p[:i], p[i+1:], true
}

func shapeString(shape []uint64) string {
	if len(shape) == 0 {
		return "scalar"
	}
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = humanize.Comma(int64(d)) //nolint:gosec // G115: extents fit int64
	}
	return strings.Join(parts, " x ")
}

func (a *app) ls(_ context.Context, args []string) (err error) {
	fs := flags("ls")
	recursive := fs.Bool("r", false, "list subgroups recursively")
	if err := parse(fs, args, 1, 2); err != nil {
		return err
	}
	group := "/"
	if fs.NArg() == 2 {
		if group, err = absPath(fs.Arg(1)); err != nil {
			return err
		}
	}
	c, err := a.open(fs.Arg(0), h5store.ReadOnly)
	if err != nil {
		return err
	}
	defer closeInto(c, &err)

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	if err := a.list(w, c, group, *recursive); err != nil {
		return err
	}
	return w.Flush()
}

func (a *app) list(w io.Writer, c *h5store.Container, group string, recursive bool) error {
	names, err := c.Objects(group)
	if err != nil {
		return err
	}
	for _, name := range names {
		p := path.Join(group, name)
		info, err := c.Info(p)
		if err != nil {
			a.log.Debug("cannot describe member", "path", p, "err", err)
			fmt.Fprintf(w, "%s\t?\t\t\n", p)
			continue
		}
		target := ""
		if info.Path != p {
			target = " -> " + info.Path
		}
		switch info.Kind {
		case h5store.KindGroup:
			fmt.Fprintf(w, "%s/%s\tgroup\t%d members\t\n", p, target, info.Members)
			if recursive && target == "" {
				if err := a.list(w, c, p, true); err != nil {
					return err
				}
			}
		case h5store.KindDataset:
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", p, target, info.Type, shapeString(info.Shape), humanize.IBytes(info.StoredBytes))
		default:
			fmt.Fprintf(w, "%s%s\tother\t\t\n", p, target)
		}
	}
	return nil
}

func (a *app) info(_ context.Context, args []string) (err error) {
	fs := flags("info")
	if err := parse(fs, args, 2, 2); err != nil {
		return err
	}
	c, err := a.open(fs.Arg(0), h5store.ReadOnly)
	if err != nil {
		return err
	}
	defer closeInto(c, &err)
	info, err := c.Info(fs.Arg(1))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "path\t%s\n", info.Path)
	fmt.Fprintf(w, "kind\t%s\n", info.Kind)
	switch info.Kind {
	case h5store.KindGroup:
		fmt.Fprintf(w, "members\t%d\n", info.Members)
	case h5store.KindDataset:
		fmt.Fprintf(w, "type\t%s (%s)\n", info.Type, info.StoredType)
		fmt.Fprintf(w, "shape\t%s\n", shapeString(info.Shape))
		fmt.Fprintf(w, "layout\t%s\n", info.Layout)
		if info.Layout == "chunked" {
			fmt.Fprintf(w, "chunks\t%s, %s index, %d of %d stored\n",
				shapeString(info.Chunks), info.ChunkIndex, info.StoredChunks, info.TotalChunks)
		}
		if len(info.Filters) > 0 {
			fmt.Fprintf(w, "filters\t%s\n", strings.Join(info.Filters, ", "))
		}
		fmt.Fprintf(w, "size\t%s stored, %s data", humanize.IBytes(info.StoredBytes), humanize.IBytes(info.DataBytes))
		if info.DataBytes > 0 {
			fmt.Fprintf(w, ", ratio %s", humanize.FtoaWithDigits(float64(info.StoredBytes)/float64(info.DataBytes), 3))
		}
		fmt.Fprintln(w)
	}
	if len(info.Attributes) > 0 {
		fmt.Fprintf(w, "attributes\t%s\n", strings.Join(info.Attributes, ", "))
	}
	return w.Flush()
}

func (a *app) cat(_ context.Context, args []string) (err error) {
	fs := flags("cat")
	limit := fs.Int("n", 256, "print at most n values, 0 for all")
	if err := parse(fs, args, 2, 2); err != nil {
		return err
	}
	c, err := a.open(fs.Arg(0), h5store.ReadOnly)
	if err != nil {
		return err
	}
	defer closeInto(c, &err)

	p := fs.Arg(1)
	owner, name, isAttr := splitAttr(p)
	var dt h5store.DataType
	if isAttr {
		dt, err = c.AttributeType(name, owner)
	} else {
		dt, err = c.DatasetType(p)
	}
	if err != nil {
		return err
	}

	switch dt {
	case h5store.Text:
		var s string
		if isAttr {
			s, err = c.ReadTextAttribute(name, owner)
		} else {
			s, err = c.ReadText(p)
		}
		if err == nil {
			_, err = fmt.Fprintln(a.out, s)
		}
		return err
	case h5store.Float32, h5store.Float64:
		return printValues[float64](a.out, c, p, *limit)
	case h5store.Uint64:
		return printValues[uint64](a.out, c, p, *limit)
	}
	return printValues[int64](a.out, c, p, *limit)
}

// printValues prints the values at p, one row per line along the last
// dimension.
func printValues[T h5store.Element](w io.Writer, c *h5store.Container, p string, limit int) error {
	v := h5store.NewArray[T]()
	var err error
	if owner, name, ok := splitAttr(p); ok {
		err = h5store.ReadAttribute(c, name, owner, v)
	} else {
		err = h5store.ReadDataset(c, p, v)
	}
	if err != nil {
		return err
	}
	row := 1
	if v.Rank() > 1 {
		row = int(v.Shape()[v.Rank()-1]) //nolint:gosec // G115: extents fit int
	}
	data := v.Data()
	for i, x := range data {
		if limit > 0 && i == limit {
			_, err := fmt.Fprintf(w, "... %s more\n", humanize.Comma(int64(len(data)-i)))
			return err
		}
		sep := " "
		if row <= 1 || (i+1)%row == 0 || i == len(data)-1 {
			sep = "\n"
		}
		if _, err := fmt.Fprint(w, x, sep); err != nil {
			return err
		}
	}
	return nil
}

// cliProgress logs copy progress and stops the copy when ctx is done.
type cliProgress struct {
	ctx  context.Context //nolint:containedctx // polled by Cancelled
	log  *slog.Logger
	what string
}

func (p *cliProgress) Update(f float64) {
	p.log.Debug("copying", "object", p.what, "done", fmt.Sprintf("%.0f%%", f*100))
}

func (p *cliProgress) Cancelled() bool { return p.ctx.Err() != nil }

func (a *app) cp(ctx context.Context, args []string) (err error) {
	fs := flags("cp")
	level := fs.Int("level", a.cfg.Level, "recompress at level 0-9, -1 keeps the source storage")
	codec := fs.String("codec", a.cfg.Codec, "codec used when recompressing: deflate, zstd or lz4")
	shuffle := fs.Bool("shuffle", a.cfg.Shuffle, "shuffle bytes before recompressing")
	if err := parse(fs, args, 4, 4); err != nil {
		return err
	}
	cd, err := parseCodec(*codec)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	opts := []h5store.TransferOption{
		h5store.WithRecompress(*level),
		h5store.WithCodec(cd),
		h5store.WithProgress(&cliProgress{ctx: ctx, log: a.log, what: fs.Arg(1)}),
	}
	if *shuffle {
		opts = append(opts, h5store.WithShuffle())
	}

	srcFile, dstFile := fs.Arg(0), fs.Arg(2)
	var src, dst *h5store.Container
	if sameFile(srcFile, dstFile) {
		if src, err = a.open(srcFile, h5store.Write); err != nil {
			return err
		}
		defer closeInto(src, &err)
		dst = src
	} else {
		if src, err = a.open(srcFile, h5store.ReadOnly); err != nil {
			return err
		}
		defer closeInto(src, &err)
		if dst, err = a.open(dstFile, h5store.WriteOrNew); err != nil {
			return err
		}
		defer closeInto(dst, &err)
	}
	if err := h5store.CopyObject(src, fs.Arg(1), dst, fs.Arg(3), opts...); err != nil {
		return err
	}
	a.log.Info("copied", "from", srcFile+":"+fs.Arg(1), "to", dstFile+":"+fs.Arg(3))
	return nil
}

// sameFile reports whether a and b name the same file, comparing paths
// when either does not exist yet.
func sameFile(a, b string) bool {
	sa, errA := os.Stat(a)
	sb, errB := os.Stat(b)
	if errA == nil && errB == nil {
		return os.SameFile(sa, sb)
	}
	pa, errA := filepath.Abs(a)
	pb, errB := filepath.Abs(b)
	return errA == nil && errB == nil && pa == pb
}

func (a *app) rm(_ context.Context, args []string) (err error) {
	fs := flags("rm")
	if err := parse(fs, args, 2, -1); err != nil {
		return err
	}
	c, err := a.open(fs.Arg(0), h5store.Write)
	if err != nil {
		return err
	}
	defer closeInto(c, &err)
	for _, p := range fs.Args()[1:] {
		if owner, name, ok := splitAttr(p); ok {
			err = c.DeleteAttribute(name, owner)
		} else if isDataset, derr := c.ExistsDataset(p); derr != nil {
			err = derr
		} else if isDataset {
			err = c.DeleteDataset(p)
		} else {
			err = c.DeleteGroup(p)
		}
		if err != nil {
			return err
		}
		a.log.Debug("removed", "path", p)
	}
	return nil
}

func (a *app) mkdir(_ context.Context, args []string) (err error) {
	fs := flags("mkdir")
	if err := parse(fs, args, 2, -1); err != nil {
		return err
	}
	c, err := a.open(fs.Arg(0), h5store.WriteOrNew)
	if err != nil {
		return err
	}
	defer closeInto(c, &err)
	for _, p := range fs.Args()[1:] {
		if err := c.CreateGroup(p); err != nil {
			return err
		}
	}
	return nil
}
