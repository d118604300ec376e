// Package prompt asks the startup yes/no questions.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Asker reads answers line by line from one input. Questions are echoed
// only on a terminal; piped answers are read all the same.
type Asker struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

func New(in io.Reader, out io.Writer, interactive bool) *Asker {
	return &Asker{in: bufio.NewReader(in), out: out, interactive: interactive}
}

// Stdio asks on the process stdin. Answers may be typed or piped in; once
// stdin is exhausted every unset answer is "no".
func Stdio() *Asker {
	return New(os.Stdin, os.Stdout, term.IsTerminal(int(os.Stdin.Fd())))
}

// YesNo returns *preset when it is set, otherwise reads one line. Only "y"
// (any case) counts as yes; an empty or closed input is "no".
func (a *Asker) YesNo(question string, preset *bool) (bool, error) {
	if preset != nil {
		return *preset, nil
	}
	if a.interactive {
		if _, err := fmt.Fprint(a.out, question); err != nil {
			return false, err
		}
	}
	line, err := a.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	return IsYes(line), nil
}

func IsYes(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}
