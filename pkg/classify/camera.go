package classify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Compile-time assertion that CommandCamera satisfies [Camera].
var _ Camera = (*CommandCamera)(nil)

// CommandCamera captures a frame by running an external capture command
// that writes one image to a fixed snapshot path. The command is expected
// to exit zero once the file is written, e.g.:
//
//	ffmpeg -y -f v4l2 -i /dev/video0 -frames:v 1 /tmp/garbage_snapshot.jpg
type CommandCamera struct {
	snapshotPath string
	command      []string
}

// NewCommandCamera builds a CommandCamera. command is argv-style: the
// executable followed by its arguments.
func NewCommandCamera(snapshotPath string, command []string) (*CommandCamera, error) {
	if snapshotPath == "" {
		return nil, errors.New("classify: snapshot path must not be empty")
	}
	if len(command) == 0 {
		return nil, errors.New("classify: capture command must not be empty")
	}
	return &CommandCamera{snapshotPath: snapshotPath, command: command}, nil
}

// Capture runs the capture command and verifies the snapshot was written.
func (c *CommandCamera) Capture(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, c.command[0], c.command[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("classify: capture command %q: %w (output: %.200s)", c.command[0], err, out)
	}
	if _, err := os.Stat(c.snapshotPath); err != nil {
		return "", fmt.Errorf("classify: capture produced no snapshot: %w", err)
	}
	return c.snapshotPath, nil
}
