// Command medtool checks, describes and creates MED files.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/timtadh/getopt"

	"github.com/batchatco/go-native-med/med"
	"github.com/batchatco/go-native-med/med/hdf5"
	"github.com/batchatco/go-native-med/med/medfile"
	"github.com/batchatco/go-native-med/med/mesh"
	"github.com/batchatco/go-native-med/med/util"
)

var ErrorCodes = map[string]int{
	"usage":   0,
	"failed":  1,
	"opts":    3,
	"badargs": 4,
	"access":  6,
	"version": 7,
}

var UsageMessage = "medtool [-v] <command> [options] <file>"
var ExtendedMessage = `
medtool -- check, describe and create MED files

Global Options
  -h, --help                view this message
  -v, --verbose             log informational messages
  --version                 print the MED library version

check <file>

  Validate a file before reading: it must exist, be readable, be a MED
  file and have a version of at least 2.2.

info <file>

  Print the file version and the meshes it holds.

touch [--legacy] <file>

  Create an empty MED file. An existing MED file of any version is left
  as is; other existing files are refused.

  Options
    --legacy                  create a MED 3.3 file

convert33 -o <out> <in>

  Copy every mesh of <in> into a new MED 3.3 file.

  Options
    -o, --output=<path>       the file to create
`

func Usage(code int) {
	fmt.Fprintln(os.Stderr, UsageMessage)
	if code == 0 {
		fmt.Fprintln(os.Stdout, ExtendedMessage)
		code = ErrorCodes["usage"]
	} else {
		fmt.Fprintln(os.Stderr, "Try -h or --help for help")
	}
	os.Exit(code)
}

// exitCode maps a failure to the process exit status.
func exitCode(err error) int {
	switch {
	case errors.Is(err, med.ErrInvalidArgument):
		return ErrorCodes["badargs"]
	case errors.Is(err, med.ErrFileAccess):
		return ErrorCodes["access"]
	case errors.Is(err, med.ErrVersionIncompatibility):
		return ErrorCodes["version"]
	}
	return ErrorCodes["failed"]
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(exitCode(err))
}

func setLogLevel(level int) {
	med.SetLogLevel(level)
	medfile.SetLogLevel(level)
	hdf5.SetLogLevel(level)
	mesh.SetLogLevel(level)
}

func main() {
	args, optargs, err := getopt.GetOpt(
		os.Args[1:],
		"hv",
		[]string{
			"help", "verbose", "version",
		},
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		Usage(ErrorCodes["opts"])
	}

	for _, oa := range optargs {
		switch oa.Opt() {
		case "-h", "--help":
			Usage(0)
		case "-v", "--verbose":
			setLogLevel(util.LevelInfo)
		case "--version":
			fmt.Println(medfile.LibraryVersion)
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown flag '%v'\n", oa.Opt())
			Usage(ErrorCodes["opts"])
		}
	}

	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "You must supply a command")
		Usage(ErrorCodes["opts"])
	}

	commands := map[string]func([]string) error{
		"check":     checkCmd,
		"info":      infoCmd,
		"touch":     touchCmd,
		"convert33": convert33Cmd,
	}
	run, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command '%v'\n", args[0])
		Usage(ErrorCodes["opts"])
	}
	if err := run(args[1:]); err != nil {
		fail(err)
	}
}

// parseCommand handles the options of a subcommand and returns its single
// file argument.
func parseCommand(args []string, short string, long []string, handle func(opt, arg string)) string {
	rest, optargs, err := getopt.GetOpt(args, "h"+short, append([]string{"help"}, long...))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		Usage(ErrorCodes["opts"])
	}
	for _, oa := range optargs {
		switch oa.Opt() {
		case "-h", "--help":
			Usage(0)
		default:
			handle(oa.Opt(), oa.Arg())
		}
	}
	if len(rest) != 1 {
		fmt.Fprintln(os.Stderr, "Expected exactly one file")
		Usage(ErrorCodes["opts"])
	}
	return rest[0]
}

func noOptions(opt, _ string) {
	fmt.Fprintf(os.Stderr, "Unknown flag '%v'\n", opt)
	Usage(ErrorCodes["opts"])
}

func checkCmd(args []string) error {
	return check(os.Stdout, parseCommand(args, "", nil, noOptions))
}

func infoCmd(args []string) error {
	return info(os.Stdout, parseCommand(args, "", nil, noOptions))
}

func touchCmd(args []string) error {
	legacy := false
	path := parseCommand(args, "", []string{"legacy"}, func(opt, arg string) {
		if opt != "--legacy" {
			noOptions(opt, arg)
		}
		legacy = true
	})
	return touch(med.Default, path, legacy)
}

func convert33Cmd(args []string) error {
	output := ""
	input := parseCommand(args, "o:", []string{"output="}, func(opt, arg string) {
		switch opt {
		case "-o", "--output":
			output = arg
		default:
			noOptions(opt, arg)
		}
	})
	if output == "" {
		fmt.Fprintln(os.Stderr, "convert33 needs an output file")
		Usage(ErrorCodes["opts"])
	}
	return convert33(med.Default, input, output)
}

func check(w io.Writer, path string) error {
	h, err := med.OpenForRead(path)
	if err != nil {
		return err
	}
	defer h.Release()
	fmt.Fprintf(w, "%s: MED %s\n", path, h.File().Version())
	return nil
}

func info(w io.Writer, path string) error {
	h, err := med.OpenForRead(path)
	if err != nil {
		return err
	}
	defer h.Release()
	f := h.File()
	fmt.Fprintf(w, "%s: MED %s\n", path, f.Version())
	for _, name := range mesh.Names(f) {
		m, err := mesh.ReadFile(f, name)
		if err != nil {
			return med.CheckCode(err, fmt.Sprintf("reading mesh %q", name))
		}
		types := make([]string, len(m.Blocks))
		for i, b := range m.Blocks {
			types[i] = fmt.Sprintf("%v:%d", b.Type, b.Len())
		}
		fmt.Fprintf(w, "  mesh %q: dimension %d in space %d, %d nodes, %d cells [%s]\n",
			m.Name, m.MeshDim, m.SpaceDim, m.NumNodes(), m.NumCells(), strings.Join(types, " "))
	}
	return nil
}

// empty writes nothing, leaving only the file header.
type empty struct{}

func (empty) WriteContent(*medfile.File) error {
	return nil
}

// touch creates path unless it already holds a readable MED file, which
// is left as it is whatever its version.
func touch(s med.StandAlone, path string, legacy bool) error {
	if (med.Validator{FS: s.FS}).Check(path) == nil {
		return nil
	}
	if legacy {
		return s.Write33(path, med.WriteAppend, empty{})
	}
	return s.Write(path, med.WriteAppend, empty{})
}

func convert33(s med.StandAlone, input, output string) error {
	h, err := med.Validator{FS: s.FS}.OpenForRead(input)
	if err != nil {
		return err
	}
	defer h.Release()
	if err := s.Write33(output, med.WriteCreate, empty{}); err != nil {
		return err
	}
	for _, name := range mesh.Names(h.File()) {
		m, err := mesh.ReadFile(h.File(), name)
		if err != nil {
			return med.CheckCode(err, fmt.Sprintf("reading mesh %q", name))
		}
		// names already fit, and cells are written as read
		m.SetZipConnPolicy(-1)
		if err := s.Write33(output, med.WriteAppend, m); err != nil {
			return err
		}
	}
	return nil
}
