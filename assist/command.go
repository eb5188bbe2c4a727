package assist

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandDecoder reads QR codes with an external program, such as
// "zbarimg --raw -q -", which receives the image on stdin.
type CommandDecoder struct {
	Name string
	Args []string
}

// NewCommandDecoder splits cmdline on whitespace into program and arguments.
func NewCommandDecoder(cmdline string) (*CommandDecoder, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty qr command", ErrUnavailable)
	}

	return &CommandDecoder{Name: fields[0], Args: fields[1:]}, nil
}

// DecodeQR returns the first otpauth URI printed by the program.
func (d *CommandDecoder) DecodeQR(ctx context.Context, image []byte) (string, error) {
	cmd := exec.CommandContext(ctx, d.Name, d.Args...)
	cmd.Stdin = bytes.NewReader(image)

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// zbarimg exits non-zero when it finds no symbol
			return "", fmt.Errorf("%w: %s exited with %d", ErrNoURI, d.Name, exitErr.ExitCode())
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "otpauth://"); i >= 0 {
			return strings.TrimSpace(line[i:]), nil
		}
	}

	return "", ErrNoURI
}
