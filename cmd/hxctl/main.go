package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

const version = "0.1.0"

func main() {
	a := &app{
		fs:     afero.NewOsFs(),
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	os.Exit(a.run(os.Args[1:]))
}

type app struct {
	fs     afero.Fs
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (a *app) run(args []string) int {
	if len(args) < 1 {
		a.printUsage(a.stderr)
		return 1
	}

	cmd := args[0]
	args = args[1:]

	var err error
	switch cmd {
	case "inspect":
		err = a.runInspect(args)
	case "activate":
		err = a.runActivate(args)
	case "encode":
		err = a.runEncode(args)
	case "decode":
		err = a.runDecode(args)
	case "generate":
		err = a.runGenerate(args)
	case "clean":
		err = a.runClean(args)
	case "version":
		fmt.Fprintf(a.stdout, "hxctl version %s\n", version)
	case "help", "-h", "--help":
		a.printUsage(a.stdout)
	default:
		fmt.Fprintf(a.stderr, "unknown command: %s\n", cmd)
		a.printUsage(a.stderr)
		return 1
	}

	if err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) printUsage(w io.Writer) {
	fmt.Fprintln(w, `hxctl - server-rendered controls that activate over their own markup

Usage:
  hxctl <command> [flags] [arguments]

Commands:
  inspect FILE          List the identified elements of an HTML file
  activate FILE         Activate an HTML file and print the report
  encode [JSON]         Encode a JSON object as a fields attribute value
  decode PAYLOAD        Decode a fields attribute value to JSON
  generate [packages]   Generate field accessors for widgets (e.g. ./...)
  clean [packages]      Remove generated files (*_ctl.go)
  version               Print version
  help                  Show this help

Common flags:
  -c, --config FILE     YAML config (attribute names, field mode and key)
  -v, --verbosity N     Log verbosity

Examples:
  hxctl inspect page.html
  hxctl activate --metrics page.html
  hxctl encode '{"count": 3}'
  hxctl generate ./...`)
}
