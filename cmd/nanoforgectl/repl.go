package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"nanoforge/internal/bandit"
	"nanoforge/pkg/nanoforge"
)

const historyFile = ".nanoforge_history"

const replBanner = `nanoforge repl
enter a script (fn main...), then feed it inputs; :help lists commands`

func runRepl(args []string) error {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Println(replBanner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	engine, err := nanoforge.NewEngine(nanoforge.Options{})
	if err != nil {
		return err
	}

	var fn *nanoforge.Function
	opt := engine.NewOptimizer(bandit.DefaultExploration)
	defer opt.Close()
	defer func() {
		fn.Release()
	}()

	for {
		code, ok := readBalanced(ln, "nf> ", "..> ")
		if !ok {
			fmt.Println()
			return nil
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, ":") {
			if exit := handleReplCommand(engine, &fn, opt, trimmed); exit {
				return nil
			}
			ln.AppendHistory(trimmed)
			continue
		}

		compiled, err := engine.Compile(code)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		fn.Release()
		fn = compiled
		n, _ := fn.NumVariants()
		fmt.Printf("compiled: %d variants\n", n)
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
	}
}

func handleReplCommand(engine *nanoforge.Engine, fn **nanoforge.Function, opt *nanoforge.Optimizer, cmd string) (exit bool) {
	fields := strings.Fields(cmd)
	switch fields[0] {
	case ":quit", ":q":
		return true
	case ":features":
		fmt.Println(engine.Init())
	case ":help":
		fmt.Println("commands: :run <input> [variant], :pick <input>, :features, :quit")
	case ":run":
		if len(fields) < 2 {
			fmt.Println("usage: :run <input> [variant]")
			return false
		}
		input, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return false
		}
		var out uint64
		if len(fields) >= 3 {
			variant, err := strconv.Atoi(fields[2])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return false
			}
			out, err = engine.ExecuteVariant(*fn, variant, input)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return false
			}
		} else {
			out, err = engine.Execute(*fn, input)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return false
			}
		}
		fmt.Println(out)
	case ":pick":
		if len(fields) < 2 {
			fmt.Println("usage: :pick <input>")
			return false
		}
		input, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return false
		}
		v, err := opt.Select(input)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return false
		}
		fmt.Printf("variant %d for bucket %d\n", v, bandit.Bucketize(input))
	default:
		fmt.Println("unknown command. Type :help.")
	}
	return false
}

// readBalanced accumulates lines until every opened brace is closed, so a
// whole function body can be entered interactively.
func readBalanced(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder
	depth := 0

	for {
		var line string
		var err error
		if b.Len() == 0 {
			line, err = ln.Prompt(prompt)
		} else {
			line, err = ln.Prompt(cont)
		}
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth <= 0 {
			return b.String(), true
		}
	}
}
