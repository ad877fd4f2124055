package hardware

import (
	"fmt"
	"os"
)

// Writer writes a single value to a kernel control file.
type Writer interface {
	WriteFile(path, value string) error
}

// SysfsWriter writes "value\n" to an existing file. Missing files are an error.
type SysfsWriter struct{}

func (SysfsWriter) WriteFile(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("open %q: %w", path, err)
	}
	if _, err := f.WriteString(value + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %q to %q: %w", value, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %q: %w", path, err)
	}
	return nil
}
