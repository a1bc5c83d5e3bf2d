package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/ferryhq/ferry/bridge"
	"github.com/ferryhq/ferry/config"
	"github.com/ferryhq/ferry/store"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive console for the HTTP boundary",
	Long: `Drive the boundary protocol by hand: issue requests, inspect the
reported lengths, drain bodies into sized buffers, and watch how the
error slot behaves.

Commands:
  get <url>              issue a GET; prints handle, status, length
  delete <url>           issue a DELETE
  post <url> <body>      issue a POST with the rest of the line as body
  put <url> <body>       issue a PUT
  patch <url> <body>     issue a PATCH
  read <handle> [cap]    drain a response (cap defaults to its length)
  free <handle>          discard a response unread
  headers [json]         set headers for later requests; bare clears
  timeout <ms>           set the per-request timeout; 0 clears
  err                    print the last error slot
  pending                count stored responses
  shutdown               drop every stored response
  help                   this text

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	Run: runRepl,
}

func init() {
	replCmd.Flags().StringSlice("allow-host", nil, "Allow HTTP to host (repeatable)")
	replCmd.Flags().String("history", "", "History file path (default: ~/.ferry_history)")
	rootCmd.AddCommand(replCmd)
}

// replSession holds console state between commands. Handle lengths are
// remembered so `read` can size its buffer the way a guest would.
type replSession struct {
	bridge  *bridge.Bridge
	caller  *bridge.Caller
	headers string
	timeout int32
	lens    map[store.Handle]int32
	out     io.Writer
}

func runRepl(cmd *cobra.Command, args []string) {
	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".ferry_history")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cmd.Flags().Changed("allow-host") {
		hosts, _ := cmd.Flags().GetStringSlice("allow-host")
		cfg.HTTP.AllowedHosts = hosts
	}

	logger := buildLogger(cfg.Log)

	b := bridge.New(
		bridge.WithLogger(logger),
		bridge.WithFetchConfig(fetchConfig(cfg, logger)),
	)
	defer b.Shutdown()

	s := &replSession{
		bridge:  b,
		caller:  b.NewCaller(),
		timeout: int32(cfg.HTTP.TimeoutSeconds) * 1000,
		lens:    make(map[store.Handle]int32),
		out:     os.Stdout,
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            ">>> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Fprintln(os.Stderr, "ferry repl (type 'help' for commands, Ctrl+D to exit)")

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				fmt.Println()
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		s.dispatch(line)
	}
}

func (s *replSession) dispatch(line string) {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "get", "delete":
		if len(fields) != 2 {
			fmt.Fprintf(s.out, "usage: %s <url>\n", cmd)
			return
		}
		s.request(strings.ToUpper(cmd), fields[1], nil)

	case "post", "put", "patch":
		parts := strings.SplitN(line, " ", 3)
		if len(parts) < 2 {
			fmt.Fprintf(s.out, "usage: %s <url> [body]\n", cmd)
			return
		}
		var body []byte
		if len(parts) == 3 {
			body = []byte(parts[2])
		}
		s.request(strings.ToUpper(cmd), parts[1], body)

	case "read":
		s.read(fields[1:])

	case "free":
		if len(fields) != 2 {
			fmt.Fprintln(s.out, "usage: free <handle>")
			return
		}
		h, ok := s.parseHandle(fields[1])
		if !ok {
			return
		}
		if st := s.caller.Free(h); st != bridge.StatusOK {
			fmt.Fprintf(s.out, "%s: %s\n", st, s.caller.LastError())
			return
		}
		delete(s.lens, h)
		fmt.Fprintf(s.out, "freed %d\n", h)

	case "headers":
		rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
		s.headers = rest
		if rest == "" {
			fmt.Fprintln(s.out, "headers cleared")
		} else {
			fmt.Fprintln(s.out, "headers set")
		}

	case "timeout":
		if len(fields) != 2 {
			fmt.Fprintln(s.out, "usage: timeout <ms>")
			return
		}
		ms, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil || ms < 0 {
			fmt.Fprintf(s.out, "bad timeout %q\n", fields[1])
			return
		}
		s.timeout = int32(ms)

	case "err":
		if msg := s.caller.LastError(); msg != "" {
			fmt.Fprintln(s.out, msg)
		} else {
			fmt.Fprintln(s.out, "(no error)")
		}

	case "pending":
		fmt.Fprintln(s.out, s.bridge.Pending())

	case "shutdown":
		s.bridge.Shutdown()
		s.lens = make(map[store.Handle]int32)
		fmt.Fprintln(s.out, "store cleared")

	case "help":
		fmt.Fprint(s.out, replCmd.Long, "\n")

	default:
		fmt.Fprintf(s.out, "unknown command %q (try 'help')\n", cmd)
	}
}

func (s *replSession) request(method, url string, body []byte) {
	res, st := s.caller.Request(context.Background(), method, url, s.headers, body, s.timeout)
	if st != bridge.StatusOK {
		fmt.Fprintf(s.out, "%s: %s\n", st, s.caller.LastError())
		return
	}
	s.lens[res.Handle] = res.BodyLen
	fmt.Fprintf(s.out, "handle=%d status=%d len=%d\n", res.Handle, res.HTTPStatus, res.BodyLen)
}

func (s *replSession) read(args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(s.out, "usage: read <handle> [cap]")
		return
	}
	h, ok := s.parseHandle(args[0])
	if !ok {
		return
	}

	var capacity int32
	if len(args) == 2 {
		n, err := strconv.ParseInt(args[1], 10, 32)
		if err != nil || n < 0 {
			fmt.Fprintf(s.out, "bad buffer size %q\n", args[1])
			return
		}
		capacity = int32(n)
	} else {
		known, ok := s.lens[h]
		if !ok {
			fmt.Fprintf(s.out, "length of %d unknown; use: read %d <cap>\n", h, h)
			return
		}
		capacity = known
	}

	buf := make([]byte, capacity)
	n, st := s.caller.Read(h, buf)
	if st != bridge.StatusOK {
		fmt.Fprintf(s.out, "%s: %s\n", st, s.caller.LastError())
		return
	}
	delete(s.lens, h)

	out := string(buf[:n])
	fmt.Fprint(s.out, out)
	if !strings.HasSuffix(out, "\n") {
		fmt.Fprintln(s.out)
	}
}

func (s *replSession) parseHandle(arg string) (store.Handle, bool) {
	n, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		fmt.Fprintf(s.out, "bad handle %q\n", arg)
		return 0, false
	}
	return store.Handle(n), true
}
