// Command kvs-client talks to a kvs-server over TCP (spec.md §4.J, §6's
// CLI surface).
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/peterh/liner"

	"github.com/NaokiLH/kvs/pkg/kvsclient"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()

		return 1
	}

	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "set":
		return cmdSet(rest)
	case "get":
		return cmdGet(rest)
	case "rm":
		return cmdRm(rest)
	case "shell":
		return cmdShell(rest)
	case "-h", "--help", "help":
		printUsage()

		return 0
	default:
		fmt.Fprintf(os.Stderr, "kvs-client: unknown command %q\n", cmd)
		printUsage()

		return 1
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  kvs-client set KEY VALUE [--addr IP:PORT]")
	fmt.Fprintln(os.Stderr, "  kvs-client get KEY [--addr IP:PORT]")
	fmt.Fprintln(os.Stderr, "  kvs-client rm KEY [--addr IP:PORT]")
	fmt.Fprintln(os.Stderr, "  kvs-client shell [--addr IP:PORT]")
}

func newAddrFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:4000", "server address IP:PORT")

	return fs, addr
}

func cmdSet(args []string) int {
	fs, addr := newAddrFlagSet("set")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: kvs-client set KEY VALUE [--addr IP:PORT]")

		return 1
	}

	client := kvsclient.New(*addr)

	if err := client.Set(fs.Arg(0), fs.Arg(1)); err != nil {
		fmt.Fprintln(os.Stderr, "kvs-client:", err)

		return 1
	}

	return 0
}

func cmdGet(args []string) int {
	fs, addr := newAddrFlagSet("get")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: kvs-client get KEY [--addr IP:PORT]")

		return 1
	}

	client := kvsclient.New(*addr)

	value, ok, err := client.Get(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "kvs-client:", err)

		return 1
	}

	if !ok {
		fmt.Println("Key not found")

		return 0
	}

	fmt.Println(value)

	return 0
}

func cmdRm(args []string) int {
	fs, addr := newAddrFlagSet("rm")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: kvs-client rm KEY [--addr IP:PORT]")

		return 1
	}

	client := kvsclient.New(*addr)

	if err := client.Remove(fs.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, "kvs-client:", err)

		return 1
	}

	return 0
}

// cmdShell is the interactive REPL spec.md doesn't name but which
// original_source/'s tooling suggests (mirrors the teacher's sloty
// REPL, built on the same liner library).
func cmdShell(args []string) int {
	fs, addr := newAddrFlagSet("shell")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	client := kvsclient.New(*addr)

	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)

	fmt.Printf("kvs-client shell (server=%s). Commands: set KEY VALUE | get KEY | rm KEY | exit\n", *addr)

	for {
		input, err := line.Prompt("kvs> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println()

				return 0
			}

			fmt.Fprintln(os.Stderr, "kvs-client:", err)

			return 1
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		line.AppendHistory(input)

		fields := strings.Fields(input)

		switch strings.ToLower(fields[0]) {
		case "exit", "quit":
			return 0
		case "set":
			if len(fields) != 3 {
				fmt.Println("usage: set KEY VALUE")

				continue
			}

			if err := client.Set(fields[1], fields[2]); err != nil {
				fmt.Println("error:", err)
			}
		case "get":
			if len(fields) != 2 {
				fmt.Println("usage: get KEY")

				continue
			}

			value, ok, err := client.Get(fields[1])
			if err != nil {
				fmt.Println("error:", err)

				continue
			}

			if !ok {
				fmt.Println("Key not found")

				continue
			}

			fmt.Println(value)
		case "rm":
			if len(fields) != 2 {
				fmt.Println("usage: rm KEY")

				continue
			}

			if err := client.Remove(fields[1]); err != nil {
				fmt.Println("error:", err)
			}
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}
