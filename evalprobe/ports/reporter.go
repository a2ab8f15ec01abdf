package ports

import (
	"fmt"
	"io"
	"sync"
)

// Reporter receives the human-readable console report of a run.
type Reporter interface {
	Output(message string)
	Warning(message string)
	Error(message string, err error)
}

// Console writes the report as plain lines to W.
type Console struct {
	W  io.Writer
	mu sync.Mutex
}

func NewConsole(w io.Writer) *Console {
	return &Console{W: w}
}

func (c *Console) Output(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.W, message)
}

func (c *Console) Warning(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.W, "WARNING: %s\n", message)
}

// Error prints message after a blank line, then the error on its own line.
func (c *Console) Error(message string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.W, "\n%s\n", message)
	if err != nil {
		fmt.Fprintln(c.W, err)
	}
}
