package skull

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrMicClosed is returned by ReadFrame before Open or after Close.
var ErrMicClosed = errors.New("microphone closed")

// runCommand runs argv and folds its stderr into the returned error.
func runCommand(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", argv[0], err, msg)
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// CommandPlayer plays files with aplay (or a compatible command).
type CommandPlayer struct {
	Command string
	Device  string
}

// Play runs the player on path and waits for it to finish.
func (p CommandPlayer) Play(ctx context.Context, path string) error {
	argv := []string{p.Command}
	if p.Device != "" {
		argv = append(argv, "-D", p.Device)
	}
	return runCommand(ctx, append(argv, "-q", path))
}

// CommandRecorder records WAV files with arecord.
type CommandRecorder struct {
	Command    string
	Device     string
	SampleRate int
}

// Record captures d of mono S16_LE audio to path.
func (r CommandRecorder) Record(ctx context.Context, path string, d time.Duration) error {
	if err := ensureDir(path); err != nil {
		return fmt.Errorf("create recording dir: %w", err)
	}
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	argv := []string{r.Command, "-q", "-f", "S16_LE", "-c", "1",
		"-r", strconv.Itoa(r.SampleRate), "-d", strconv.Itoa(secs)}
	if r.Device != "" {
		argv = append(argv, "-D", r.Device)
	}
	return runCommand(ctx, append(argv, path))
}

// CommandMicrophone streams raw frames from an arecord child process.
type CommandMicrophone struct {
	Command      string
	Device       string
	SampleRate   int
	FrameSamples int

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	buf    []byte
}

// Open starts the capture process. Opening an open microphone is a no-op.
func (m *CommandMicrophone) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cmd != nil {
		return nil
	}
	argv := []string{"-q", "-t", "raw", "-f", "S16_LE", "-c", "1", "-r", strconv.Itoa(m.SampleRate)}
	if m.Device != "" {
		argv = append(argv, "-D", m.Device)
	}
	cmd := exec.CommandContext(ctx, m.Command, argv...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("microphone pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", m.Command, err)
	}
	m.cmd = cmd
	m.stdout = stdout
	m.buf = make([]byte, 2*m.FrameSamples)
	return nil
}

// ReadFrame blocks until one frame of samples has been captured. Close
// unblocks a pending read.
func (m *CommandMicrophone) ReadFrame(_ context.Context) ([]int16, error) {
	m.mu.Lock()
	stdout, buf := m.stdout, m.buf
	m.mu.Unlock()

	if stdout == nil {
		return nil, ErrMicClosed
	}
	if _, err := io.ReadFull(stdout, buf); err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	frame := make([]int16, len(buf)/2)
	for i := range frame {
		frame[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
	}
	return frame, nil
}

// Close stops the capture process. Closing a closed microphone is a no-op.
func (m *CommandMicrophone) Close() error {
	m.mu.Lock()
	cmd := m.cmd
	m.cmd, m.stdout = nil, nil
	m.mu.Unlock()

	if cmd == nil {
		return nil
	}
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	// The process was killed on purpose; its exit status is noise.
	_ = cmd.Wait()
	return nil
}

// CommandSynthesizer speaks through a local TTS program such as espeak.
// Argv is invoked as: argv... path text.
type CommandSynthesizer struct {
	Argv []string
}

// Synthesize writes the speech for text to path.
func (s CommandSynthesizer) Synthesize(ctx context.Context, text, path string) error {
	if err := ensureDir(path); err != nil {
		return fmt.Errorf("create speech dir: %w", err)
	}
	argv := append(append([]string(nil), s.Argv...), path, text)
	return runCommand(ctx, argv)
}

// CommandPower runs the OS shutdown and reboot commands after a grace wait
// that lets the farewell finish playing.
type CommandPower struct {
	Wait            time.Duration
	ShutdownCommand []string
	RebootCommand   []string
	Logger          *slog.Logger
}

// Shutdown halts the host.
func (p CommandPower) Shutdown(ctx context.Context) error {
	return p.run(ctx, "shutdown", p.ShutdownCommand)
}

// Reboot restarts the host.
func (p CommandPower) Reboot(ctx context.Context) error {
	return p.run(ctx, "reboot", p.RebootCommand)
}

func (p CommandPower) run(ctx context.Context, op string, argv []string) error {
	if p.Logger != nil {
		p.Logger.Warn("power action scheduled", slog.String("op", op), slog.Duration("wait", p.Wait))
	}
	timer := time.NewTimer(p.Wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	return runCommand(ctx, argv)
}
