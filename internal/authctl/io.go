package authctl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// IO is the terminal used by commands
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
}

// Console reads from stdin and writes to out. Passwords are read without
// echo when stdin is a terminal.
type Console struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
}

// NewConsole creates a Console on the process stdio.
func NewConsole() *Console {
	return &Console{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
		fd:  int(os.Stdin.Fd()),
	}
}

func (c *Console) Println(a ...any) {
	fmt.Fprintln(c.out, a...)
}

func (c *Console) Printf(format string, a ...any) {
	fmt.Fprintf(c.out, format, a...)
}

func (c *Console) ReadInput(prompt string) (string, error) {
	c.Printf("%s", prompt)
	input, err := c.in.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func (c *Console) ReadPassword(prompt string) (string, error) {
	if !term.IsTerminal(c.fd) {
		// пароль из пайпа, например в скриптах
		return c.ReadInput(prompt)
	}

	c.Printf("%s", prompt)
	pw, err := term.ReadPassword(c.fd)
	c.Println("")
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
