package kws

import (
	"bufio"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Compile-time assertion that StdioEngine satisfies [Engine].
var _ Engine = (*StdioEngine)(nil)

// StdioEngine runs the vendor inference process and reads one line of
// whitespace-separated keyword probabilities per inference step from its
// standard output.
//
// The subprocess owns the microphone and the acoustic model; this adapter
// only paces it. Because the child writes one line per inference step, a
// stalled Step loop eventually fills the pipe and stalls the child's audio
// buffer too — the same overrun condition the Spotter loop exists to avoid.
//
// A dedicated goroutine is the sole reader of the child's stdout; Step
// receives lines from it over an unbuffered channel. Close may therefore be
// called from any goroutine while Step is blocked: it kills the child, waits
// for the reader to drain to EOF, and only then reaps the process.
type StdioEngine struct {
	cmd   *exec.Cmd
	probs []float64 // reused across steps
	cb    func(probs []float64)

	lines      chan string
	quit       chan struct{}
	readerDone chan struct{}
	scanErr    error // written by the reader before it closes lines

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewStdioEngine launches the inference command and attaches to its output.
// A command that cannot be started (missing binary, missing model artifact
// reported via immediate exit) is a fatal initialisation error.
func NewStdioEngine(command string, args ...string) (*StdioEngine, error) {
	if command == "" {
		return nil, errors.New("kws: engine command must not be empty")
	}

	cmd := exec.Command(command, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("kws: attach engine stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("kws: start engine %q: %w", command, err)
	}

	e := &StdioEngine{
		cmd:        cmd,
		lines:      make(chan string),
		quit:       make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	go func() {
		defer close(e.readerDone)
		defer close(e.lines)
		sc := bufio.NewScanner(stdout)
		for sc.Scan() {
			select {
			case e.lines <- sc.Text():
			case <-e.quit:
				return
			}
		}
		e.scanErr = sc.Err()
	}()
	return e, nil
}

// SetCallback registers the per-step probability callback.
func (e *StdioEngine) SetCallback(fn func(probs []float64)) {
	e.cb = fn
}

// Step waits for one probability line from the child process and delivers it
// to the callback. A malformed line is an error for this step only; the
// engine remains usable. End of stream means the child exited and is
// terminal.
func (e *StdioEngine) Step() error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	line, ok := <-e.lines
	if !ok {
		if e.closed.Load() {
			return ErrEngineClosed
		}
		if err := e.scanErr; err != nil {
			return fmt.Errorf("kws: read engine output: %w (%w)", err, ErrEngineClosed)
		}
		return fmt.Errorf("kws: engine output ended: %w", ErrEngineClosed)
	}

	fields := strings.Fields(line)
	e.probs = e.probs[:0]
	for _, f := range fields {
		p, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return fmt.Errorf("kws: malformed probability %q: %w", f, err)
		}
		e.probs = append(e.probs, p)
	}

	if e.cb != nil && len(e.probs) > 0 {
		e.cb(e.probs)
	}
	return nil
}

// Close terminates the inference process and reaps it. Safe to call
// concurrently with Step and more than once.
func (e *StdioEngine) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.quit)
		if e.cmd.Process != nil {
			_ = e.cmd.Process.Kill()
		}
		// The reader must observe EOF before Wait closes the pipe.
		<-e.readerDone
		if err := e.cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			// A killed child reports an unclean exit; that is expected.
			if !errors.As(err, &exitErr) {
				e.closeErr = fmt.Errorf("kws: reap engine: %w", err)
			}
		}
	})
	return e.closeErr
}
