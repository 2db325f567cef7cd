// Command mkimage stages userland ELF binaries into the flat container
// cmd/kernel loads at boot (§4.3, §9), grounded on the google/subcommands
// CLI structure the retrieval pack's gVisor runsc uses for its own
// multi-subcommand entrypoint (runsc/cli/main.go).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/google/subcommands"

	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/image"
)

func main() {
	cmdr := subcommands.NewCommander(flag.CommandLine, "mkimage")
	cmdr.Register(cmdr.HelpCommand(), "")
	cmdr.Register(cmdr.FlagsCommand(), "")
	cmdr.Register(cmdr.CommandsCommand(), "")
	cmdr.Register(&packCmd{}, "")
	cmdr.Register(&listCmd{}, "")
	flag.Parse()
	os.Exit(int(cmdr.Execute(context.Background())))
}

// packCmd implements subcommands.Command for "pack": bundle one or more
// name=path ELF files into a single image container.
type packCmd struct {
	out string
}

func (*packCmd) Name() string     { return "pack" }
func (*packCmd) Synopsis() string { return "bundle ELF binaries into an image container" }
func (*packCmd) Usage() string {
	return "pack -out=<file> <registered-path>=<host-elf-path> [...]\n"
}

func (p *packCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.out, "out", "image.bin", "output image file")
}

func (p *packCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "mkimage pack: at least one name=path pair is required")
		return subcommands.ExitUsageError
	}

	entries := map[string][]byte{}
	var order []string
	for _, arg := range f.Args() {
		name, hostPath, ok := splitPair(arg)
		if !ok {
			fmt.Fprintf(os.Stderr, "mkimage pack: malformed pair %q, want name=path\n", arg)
			return subcommands.ExitUsageError
		}
		data, err := os.ReadFile(hostPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mkimage pack: %v\n", err)
			return subcommands.ExitFailure
		}
		entries[name] = data
		order = append(order, name)
	}
	sort.Strings(order)

	out, err := os.Create(p.out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkimage pack: %v\n", err)
		return subcommands.ExitFailure
	}
	defer out.Close()

	if err := image.Pack(out, order, entries); err != nil {
		fmt.Fprintf(os.Stderr, "mkimage pack: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("mkimage: wrote %d entries to %s\n", len(order), p.out)
	return subcommands.ExitSuccess
}

func splitPair(s string) (name, path string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

// listCmd implements subcommands.Command for "list": print the entries
// an existing image container holds, for inspecting a staged image
// without booting the kernel against it.
type listCmd struct{}

func (*listCmd) Name() string             { return "list" }
func (*listCmd) Synopsis() string         { return "list the entries in an image container" }
func (*listCmd) Usage() string            { return "list <image-file>\n" }
func (*listCmd) SetFlags(f *flag.FlagSet) {}

func (*listCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "mkimage list: expected exactly one image file")
		return subcommands.ExitUsageError
	}
	in, err := os.Open(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkimage list: %v\n", err)
		return subcommands.ExitFailure
	}
	defer in.Close()

	order, entries, err := image.Unpack(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkimage list: %v\n", err)
		return subcommands.ExitFailure
	}
	for _, name := range order {
		fmt.Printf("%8d  %s\n", len(entries[name]), name)
	}
	return subcommands.ExitSuccess
}
