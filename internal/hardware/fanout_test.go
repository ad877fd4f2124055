package hardware

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func TestExpandPerCPU(t *testing.T) {
	root := t.TempDir()
	cpu := filepath.Join(root, "cpu")
	for _, c := range []string{"cpu0", "cpu1", "cpu3"} {
		touch(t, filepath.Join(cpu, c, "cpufreq", "energy_performance_preference"))
	}
	// cpu2 has no cpufreq directory, cpufreq itself is not numeric.
	require.NoError(t, os.MkdirAll(filepath.Join(cpu, "cpu2"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(cpu, "cpufreq"), 0o755))

	got := ExpandPerCPU(filepath.Join(cpu, "cpu0", "cpufreq", "energy_performance_preference"))
	assert.Equal(t, []string{
		filepath.Join(cpu, "cpu0", "cpufreq", "energy_performance_preference"),
		filepath.Join(cpu, "cpu1", "cpufreq", "energy_performance_preference"),
		filepath.Join(cpu, "cpu3", "cpufreq", "energy_performance_preference"),
	}, got)
}

func TestExpandPerCPU_Fallbacks(t *testing.T) {
	cases := []struct {
		name string
		path string
	}{
		{"not per cpu", "/sys/firmware/acpi/platform_profile"},
		{"parent missing", "/nonexistent/policy0/scaling_governor"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, []string{tc.path}, ExpandPerCPU(tc.path))
		})
	}
}

func TestExpandPerCPU_NoSiblingHasFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "policy0"), 0o755))
	p := filepath.Join(root, "policy0", "scaling_governor")
	assert.Equal(t, []string{p}, ExpandPerCPU(p))
}

func TestSysfsWriter(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "policy")
	require.NoError(t, os.WriteFile(p, []byte("default\n"), 0o644))

	require.NoError(t, SysfsWriter{}.WriteFile(p, "powersave"))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "powersave\n", string(b))

	err = SysfsWriter{}.WriteFile(filepath.Join(dir, "missing"), "x")
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "missing"))
	assert.True(t, os.IsNotExist(statErr), "writer must not create files")
}
