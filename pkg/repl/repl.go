package repl

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"unicode"

	"IP-Echo/pkg/diag"
	"IP-Echo/pkg/echostack"
)

const usage = `Commands:
  ts <port>                  run a TCP echo server (one client)
  tc <addr> <port> <message> send message to a TCP echo server
  us <port>                  run a UDP echo server (one datagram)
  uc <addr> <port> <message> send message to a UDP echo server
  lh                         list recent diagnostics
  q                          quit`

// Console reads commands line by line and runs each echo operation to
// completion before prompting again.
type Console struct {
	In      io.Reader
	Out     io.Writer
	Sink    diag.Sink
	History *diag.Recorder
	Options []echostack.Option
}

// Start runs the console until q or end of input.
func (c *Console) Start() {
	reader := bufio.NewScanner(c.In)
	for {
		fmt.Fprint(c.Out, "> ")
		if !reader.Scan() {
			fmt.Fprintln(c.Out)
			return
		}
		input := strings.TrimSpace(reader.Text())
		if input == "" {
			continue
		}
		if input == "q" || input == "exit" {
			return
		}
		c.run(input)
	}
}

func (c *Console) run(input string) {
	parts := splitArgs(input, 4)
	switch parts[0] {
	case "ts", "us":
		if len(parts) != 2 {
			fmt.Fprintf(c.Out, "Usage: %s <port>\n", parts[0])
			return
		}
		port, err := strconv.Atoi(parts[1])
		if err != nil {
			fmt.Fprintf(c.Out, "Invalid port: %v\n", err)
			return
		}
		if parts[0] == "ts" {
			err = echostack.StartStreamServer(c.sink(), port, c.Options...)
		} else {
			err = echostack.StartDatagramServer(c.sink(), port, c.Options...)
		}
		c.done(err)

	case "tc", "uc":
		if len(parts) != 4 {
			fmt.Fprintf(c.Out, "Usage: %s <addr> <port> <message>\n", parts[0])
			return
		}
		port, err := strconv.Atoi(parts[2])
		if err != nil {
			fmt.Fprintf(c.Out, "Invalid port: %v\n", err)
			return
		}
		var reply []byte
		if parts[0] == "tc" {
			reply, err = echostack.StartStreamClient(c.sink(), parts[1], port, []byte(parts[3]), c.Options...)
		} else {
			reply, err = echostack.StartDatagramClient(c.sink(), parts[1], port, []byte(parts[3]), c.Options...)
		}
		if err == nil {
			fmt.Fprintf(c.Out, "reply: %s\n", diag.Printable(reply))
		}
		c.done(err)

	case "lh":
		c.listHistory()

	default:
		fmt.Fprintln(c.Out, usage)
	}
}

// splitArgs splits s into at most n fields separated by runs of whitespace.
// The last field keeps the rest of the line, inner spacing included.
func splitArgs(s string, n int) []string {
	var out []string
	s = strings.TrimSpace(s)
	for s != "" && len(out) < n-1 {
		i := strings.IndexFunc(s, unicode.IsSpace)
		if i < 0 {
			break
		}
		out = append(out, s[:i])
		s = strings.TrimLeftFunc(s[i:], unicode.IsSpace)
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func (c *Console) sink() diag.Sink {
	if c.History == nil {
		return diag.OrNop(c.Sink)
	}
	return diag.Tee(c.Sink, c.History)
}

func (c *Console) done(err error) {
	if err != nil {
		fmt.Fprintf(c.Out, "error: %v\n", err)
		return
	}
	fmt.Fprintln(c.Out, "ok")
}

func (c *Console) listHistory() {
	if c.History == nil {
		fmt.Fprintln(c.Out, "history is disabled")
		return
	}
	w := tabwriter.NewWriter(c.Out, 1, 1, 3, ' ', 0)
	fmt.Fprintln(w, "#\tEvent")
	for i, line := range c.History.Lines() {
		fmt.Fprintln(w, strconv.Itoa(i+1)+"\t"+line)
	}
	w.Flush()
}
