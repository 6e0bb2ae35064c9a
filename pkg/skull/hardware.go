package skull

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// FileServo drives a PWM servo through a sysfs duty_cycle file, which takes
// nanoseconds.
type FileServo struct {
	Path string
}

// SetPulse implements Servo.
func (s FileServo) SetPulse(us float64) error {
	if s.Path == "" {
		return errors.New("servo: no device path")
	}
	ns := int64(math.Round(us * 1000))
	return os.WriteFile(s.Path, []byte(strconv.FormatInt(ns, 10)+"\n"), 0o644)
}

// SysfsPin reads a GPIO value file ("0" or "1").
type SysfsPin struct {
	Path string
}

// Read implements Pin.
func (p SysfsPin) Read() (bool, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return false, fmt.Errorf("read gpio: %w", err)
	}
	return strings.TrimSpace(string(data)) == "1", nil
}

// FileLEDStrip writes each frame to a device file as one "r g b" line per
// LED, the format read by the LED bar's serial bridge.
type FileLEDStrip struct {
	path string

	mu     sync.Mutex
	colors []Color
}

// NewFileLEDStrip creates a strip of n LEDs backed by path.
func NewFileLEDStrip(path string, n int) *FileLEDStrip {
	return &FileLEDStrip{path: path, colors: make([]Color, n)}
}

// Len implements LEDStrip.
func (s *FileLEDStrip) Len() int { return len(s.colors) }

// Set implements LEDStrip.
func (s *FileLEDStrip) Set(i int, c Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= 0 && i < len(s.colors) {
		s.colors[i] = c
	}
}

// Show implements LEDStrip.
func (s *FileLEDStrip) Show() error {
	s.mu.Lock()
	var b strings.Builder
	for _, c := range s.colors {
		r, g, bl := c.RGB()
		fmt.Fprintf(&b, "%d %d %d\n", r, g, bl)
	}
	s.mu.Unlock()

	return os.WriteFile(s.path, []byte(b.String()), 0o644)
}

// Clear implements LEDStrip.
func (s *FileLEDStrip) Clear() error {
	s.mu.Lock()
	for i := range s.colors {
		s.colors[i] = Color{}
	}
	s.mu.Unlock()
	return s.Show()
}

// RGB converts c to 8-bit channels.
func (c Color) RGB() (r, g, b uint8) {
	h := math.Mod(c.H, 1)
	if h < 0 {
		h++
	}
	s := clamp01(c.S)
	v := clamp01(c.V)

	i := math.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	var rf, gf, bf float64
	switch int(i) % 6 {
	case 0:
		rf, gf, bf = v, t, p
	case 1:
		rf, gf, bf = q, v, p
	case 2:
		rf, gf, bf = p, v, t
	case 3:
		rf, gf, bf = p, q, v
	case 4:
		rf, gf, bf = t, p, v
	default:
		rf, gf, bf = v, p, q
	}
	return uint8(math.Round(rf * 255)), uint8(math.Round(gf * 255)), uint8(math.Round(bf * 255))
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// RuntimeSampler reports the process's own load: heap in use over memory
// obtained from the OS, and goroutines over a ceiling.
type RuntimeSampler struct {
	// GoroutineCeiling is the goroutine count reported as full load.
	// Zero means 100 per CPU.
	GoroutineCeiling int
}

// Sample implements Sampler.
func (s RuntimeSampler) Sample(context.Context) (Usage, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	ceiling := s.GoroutineCeiling
	if ceiling <= 0 {
		ceiling = 100 * runtime.NumCPU()
	}

	var mem float64
	if ms.Sys > 0 {
		mem = float64(ms.HeapInuse) / float64(ms.Sys)
	}
	return Usage{
		Memory: clamp01(mem),
		CPU:    clamp01(float64(runtime.NumGoroutine()) / float64(ceiling)),
	}, nil
}

// ProcSampler reads host-wide memory and CPU usage from /proc.
type ProcSampler struct {
	Root string // defaults to /proc

	mu        sync.Mutex
	prevIdle  uint64
	prevTotal uint64
	havePrev  bool
}

func (s *ProcSampler) root() string {
	if s.Root == "" {
		return "/proc"
	}
	return s.Root
}

// Sample implements Sampler. CPU usage is measured between consecutive
// calls, so the first sample reports 0.
func (s *ProcSampler) Sample(context.Context) (Usage, error) {
	mem, err := s.memory()
	if err != nil {
		return Usage{}, err
	}
	cpu, err := s.cpu()
	if err != nil {
		return Usage{}, err
	}
	return Usage{Memory: mem, CPU: cpu}, nil
}

func (s *ProcSampler) memory() (float64, error) {
	f, err := os.Open(s.root() + "/meminfo")
	if err != nil {
		return 0, fmt.Errorf("read meminfo: %w", err)
	}
	defer f.Close()

	var total, avail float64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total = v
		case "MemAvailable:":
			avail = v
		}
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("scan meminfo: %w", err)
	}
	if total == 0 {
		return 0, errors.New("meminfo: no MemTotal")
	}
	return clamp01((total - avail) / total), nil
}

func (s *ProcSampler) cpu() (float64, error) {
	f, err := os.Open(s.root() + "/stat")
	if err != nil {
		return 0, fmt.Errorf("read stat: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return 0, errors.New("stat: empty")
	}
	fields := strings.Fields(sc.Text())
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0, fmt.Errorf("stat: unexpected line %q", sc.Text())
	}

	var total, idle uint64
	for i, field := range fields[1:] {
		v, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("stat: %w", err)
		}
		total += v
		if i == 3 || i == 4 { // idle, iowait
			idle += v
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		s.prevIdle, s.prevTotal, s.havePrev = idle, total, true
	}()
	if !s.havePrev || total <= s.prevTotal {
		return 0, nil
	}
	dTotal := float64(total - s.prevTotal)
	dIdle := float64(idle - s.prevIdle)
	return clamp01(1 - dIdle/dTotal), nil
}
