package skull

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColor_RGB(t *testing.T) {
	tests := []struct {
		name    string
		color   Color
		r, g, b uint8
	}{
		{"red", Color{H: 0, S: 1, V: 1}, 255, 0, 0},
		{"green", Color{H: 1.0 / 3, S: 1, V: 1}, 0, 255, 0},
		{"blue", Color{H: 2.0 / 3, S: 1, V: 1}, 0, 0, 255},
		{"white", Color{H: 0.5, S: 0, V: 1}, 255, 255, 255},
		{"off", Color{H: 0.2, S: 1, V: 0}, 0, 0, 0},
		{"hue wraps", Color{H: 1, S: 1, V: 1}, 255, 0, 0},
		{"value clamps", Color{H: 0, S: 1, V: 3}, 255, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b := tt.color.RGB()
			assert.Equal(t, []uint8{tt.r, tt.g, tt.b}, []uint8{r, g, b})
		})
	}
}

func TestFileServo_WritesNanoseconds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duty_cycle")
	require.NoError(t, FileServo{Path: path}.SetPulse(1500))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1500000\n", string(data))

	assert.Error(t, FileServo{}.SetPulse(1500))
}

func TestSysfsPin_Read(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value")

	require.NoError(t, os.WriteFile(path, []byte("1\n"), 0o644))
	high, err := SysfsPin{Path: path}.Read()
	require.NoError(t, err)
	assert.True(t, high)

	require.NoError(t, os.WriteFile(path, []byte("0\n"), 0o644))
	high, err = SysfsPin{Path: path}.Read()
	require.NoError(t, err)
	assert.False(t, high)

	_, err = SysfsPin{Path: filepath.Join(t.TempDir(), "missing")}.Read()
	assert.Error(t, err)
}

func TestFileLEDStrip_ShowAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leds")
	strip := NewFileLEDStrip(path, 3)
	assert.Equal(t, 3, strip.Len())

	strip.Set(0, Color{H: 0, S: 1, V: 1})
	strip.Set(2, Color{H: 2.0 / 3, S: 1, V: 1})
	strip.Set(7, Color{H: 0, S: 1, V: 1}) // out of range, ignored
	require.NoError(t, strip.Show())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "255 0 0\n0 0 0\n0 0 255\n", string(data))

	require.NoError(t, strip.Clear())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0 0 0\n0 0 0\n0 0 0\n", string(data))
}

func writeProc(t *testing.T, root, meminfo, stat string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, "meminfo"), []byte(meminfo), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stat"), []byte(stat), 0o644))
}

func TestProcSampler_Sample(t *testing.T) {
	root := t.TempDir()
	meminfo := "MemTotal:       1000 kB\nMemFree:         100 kB\nMemAvailable:    250 kB\n"
	writeProc(t, root, meminfo, "cpu  100 0 100 700 100 0 0 0\ncpu0 1 2 3 4 5\n")

	s := &ProcSampler{Root: root}
	u, err := s.Sample(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.75, u.Memory, 1e-9)
	assert.Zero(t, u.CPU, "first sample has no baseline")

	writeProc(t, root, meminfo, "cpu  200 0 200 1300 200 0 0 0\n")
	u, err = s.Sample(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1-700.0/900.0, u.CPU, 1e-9)
}

func TestProcSampler_Errors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		_, err := (&ProcSampler{Root: filepath.Join(t.TempDir(), "nope")}).Sample(context.Background())
		assert.Error(t, err)
	})

	t.Run("no MemTotal", func(t *testing.T) {
		root := t.TempDir()
		writeProc(t, root, "MemFree: 10 kB\n", "cpu 1 1 1 1 1\n")
		_, err := (&ProcSampler{Root: root}).Sample(context.Background())
		assert.ErrorContains(t, err, "MemTotal")
	})

	t.Run("bad stat", func(t *testing.T) {
		root := t.TempDir()
		writeProc(t, root, "MemTotal: 10 kB\nMemAvailable: 5 kB\n", "intr 1 2 3\n")
		_, err := (&ProcSampler{Root: root}).Sample(context.Background())
		assert.Error(t, err)
	})
}

func TestRuntimeSampler_InRange(t *testing.T) {
	u, err := RuntimeSampler{GoroutineCeiling: 1000}.Sample(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, u.Memory, 0.0)
	assert.LessOrEqual(t, u.Memory, 1.0)
	assert.Greater(t, u.CPU, 0.0)
	assert.LessOrEqual(t, u.CPU, 1.0)
}
