package shell

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"
)

// LineReader prompts for and returns one line of input without its newline.
// It returns io.EOF once input is exhausted.
type LineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// NewLineReader picks a line-editing reader when in is the process terminal
// and a buffered reader otherwise.
func NewLineReader(in io.Reader, out io.Writer, complete func(string) []string) LineReader {
	if f, ok := in.(*os.File); ok && f == os.Stdin && term.IsTerminal(int(f.Fd())) {
		return newTerminalReader(complete)
	}
	return NewBufferedReader(in, out)
}

type bufferedReader struct {
	r *bufio.Reader
	w io.Writer
}

// NewBufferedReader writes each prompt to out and reads lines from in.
func NewBufferedReader(in io.Reader, out io.Writer) LineReader {
	return &bufferedReader{r: bufio.NewReader(in), w: out}
}

func (b *bufferedReader) Prompt(prompt string) (string, error) {
	if _, err := io.WriteString(b.w, prompt); err != nil {
		return "", err
	}
	line, err := b.r.ReadString('\n')
	if err != nil {
		// Final line without a trailing newline
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (b *bufferedReader) Close() error {
	return nil
}

type terminalReader struct {
	state *liner.State
}

func newTerminalReader(complete func(string) []string) *terminalReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	state.SetTabCompletionStyle(liner.TabPrints)
	if complete != nil {
		state.SetCompleter(complete)
	}
	return &terminalReader{state: state}
}

func (t *terminalReader) Prompt(prompt string) (string, error) {
	for {
		line, err := t.state.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(line) != "" {
			t.state.AppendHistory(line)
		}
		return line, nil
	}
}

func (t *terminalReader) Close() error {
	return t.state.Close()
}
