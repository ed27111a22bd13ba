package med

import (
	"github.com/batchatco/go-native-med/med/medfile"
	"github.com/go-git/go-billy/v5"
)

// Handle owns an open medfile.File until it is released.
//
//	h, err := openHandle(fsys, name, mode)
//	if err != nil {
//		return err
//	}
//	defer h.Release()
type Handle struct {
	f *medfile.File
}

// NewHandle takes ownership of f.
func NewHandle(f *medfile.File) *Handle {
	return &Handle{f: f}
}

func openHandle(fsys billy.Filesystem, name string, mode medfile.AccessMode) (*Handle, error) {
	f, err := medfile.Open(fsys, name, mode)
	if err != nil {
		return nil, err
	}
	return NewHandle(f), nil
}

// File returns the open file, or nil once released.
func (h *Handle) File() *medfile.File {
	return h.f
}

// Release closes the file if it is still open. A close failure is logged
// and otherwise ignored, so Release suits deferred cleanup. Use Close
// where the failure matters.
func (h *Handle) Release() {
	if h == nil || h.f == nil {
		return
	}
	f := h.f
	h.f = nil
	if err := f.Close(); err != nil {
		logger.Warnf("releasing %q: %v", f.Name(), err)
	}
}

// Close closes the file and returns the close error. Release does nothing
// afterwards.
func (h *Handle) Close() error {
	if h == nil || h.f == nil {
		return nil
	}
	f := h.f
	h.f = nil
	return f.Close()
}
