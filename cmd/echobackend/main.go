// Command echobackend is a stand-in chat backend for trying chatshell
// without a model. It answers every input line on stdout, wrapping the
// echoed text in a fenced code block.
//
//	CHATSHELL_BACKEND__COMMAND=echobackend CHATSHELL_BACKEND__ARGS= chatshell
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
)

type options struct {
	SearchPrefix string        `help:"Prefix marking hub search requests." default:"HF_SEARCH:::"`
	EndMarker    string        `help:"Write this marker after each reply (for sentinel framing)."`
	Language     string        `help:"Language tag of the echo block." default:"text"`
	ChunkDelay   time.Duration `help:"Write replies word by word with this pause between words."`
}

func main() {
	var opts options
	kong.Parse(&opts,
		kong.Name("echobackend"),
		kong.Description("Echo chat backend speaking the chatshell stdio protocol."),
	)

	fmt.Fprintln(os.Stderr, "echobackend ready")
	if err := serve(os.Stdin, os.Stdout, opts); err != nil {
		fmt.Fprintln(os.Stderr, "echobackend:", err)
		os.Exit(1)
	}
}

// serve answers each line of in until in ends or a farewell arrives.
func serve(in io.Reader, out io.Writer, opts options) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reply, done := respond(line, opts)
		if err := write(out, reply+opts.EndMarker, opts.ChunkDelay); err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return scanner.Err()
}

func respond(line string, opts options) (reply string, done bool) {
	switch strings.ToLower(line) {
	case "quit", "exit", "bye":
		return "Goodbye!\n", true
	}

	if query, ok := strings.CutPrefix(line, opts.SearchPrefix); ok && opts.SearchPrefix != "" {
		query = strings.TrimSpace(query)
		var b strings.Builder
		fmt.Fprintf(&b, "Hub results for \"%s\":\n", query)
		for i, suffix := range []string{"base", "instruct", "gguf"} {
			fmt.Fprintf(&b, "%d. echo/%s-%s\n", i+1, slug(query), suffix)
		}
		return b.String(), false
	}

	return fmt.Sprintf("You said:\n```%s\n%s\n```\n", opts.Language, line), false
}

func slug(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), "-"))
}

// write sends reply in one write, or word by word when delay is set so the
// client sees it arrive in several chunks.
func write(out io.Writer, reply string, delay time.Duration) error {
	if delay <= 0 {
		_, err := io.WriteString(out, reply)
		return err
	}
	for _, word := range strings.SplitAfter(reply, " ") {
		if _, err := io.WriteString(out, word); err != nil {
			return err
		}
		time.Sleep(delay)
	}
	return nil
}
