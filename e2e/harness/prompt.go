package harness

import "strings"

// promptScanner accumulates stdout and cuts it at every prompt occurrence.
// Text after the last prompt stays pending, so a prompt split across chunks
// is still found.
type promptScanner struct {
	prompt  string
	pending string
}

// Write appends chunk and returns the output preceding each prompt found.
func (p *promptScanner) Write(chunk string) []string {
	p.pending += chunk
	if p.prompt == "" {
		return nil
	}

	var outputs []string
	for {
		i := strings.Index(p.pending, p.prompt)
		if i < 0 {
			return outputs
		}
		outputs = append(outputs, p.pending[:i])
		p.pending = p.pending[i+len(p.prompt):]
	}
}

// Pending returns the text seen since the last prompt
func (p *promptScanner) Pending() string {
	return p.pending
}

func (p *promptScanner) Len() int {
	return len(p.pending)
}

func (p *promptScanner) Reset() {
	p.pending = ""
}
