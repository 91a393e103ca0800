package platform

import "os"

// checkRegular closes f and fails unless it refers to a regular file.
func checkRegular(f *os.File) (*os.File, error) {
	info, err := f.Stat()
	if err != nil {
		_ = f.Close() //nolint:errcheck // stat error takes precedence
		return nil, err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close() //nolint:errcheck // best-effort cleanup
		return nil, ErrNotRegular
	}
	return f, nil
}
