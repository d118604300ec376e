// Package accounts reads the newline-delimited credential list.
package accounts

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"tapfarm/internal/model"
)

// ErrNoAccounts is returned when the list holds no usable line.
var ErrNoAccounts = errors.New("account list is empty")

// LoadFile reads the account list at path.
func LoadFile(path string) ([]model.Account, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open account list: %w", err)
	}
	defer f.Close()

	accounts, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read account list %s: %w", path, err)
	}
	return accounts, nil
}

// Parse returns one account per non-blank line, in file order. Lines starting
// with '#' are comments. A repeated credential is farmed once per line. Line
// is the 1-based line number in the file.
func Parse(r io.Reader) ([]model.Account, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out []model.Account
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, model.Account{
			Credential: line,
			Line:       n,
			Label:      model.AccountLabel(n, line),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoAccounts
	}
	return out, nil
}
