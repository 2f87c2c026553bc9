package native

// handle is the open/closed state every object handle carries. Handles
// are counted per File until closed, so a File can report and reclaim the
// ones its caller leaked.
type handle struct {
	file   *File
	closed bool
}

func (f *File) newHandle() (*handle, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	h := &handle{file: f}
	f.s.mu.Lock()
	f.handles[h] = struct{}{}
	f.s.mu.Unlock()
	return h, nil
}

func (h *handle) check() error {
	if h.closed {
		return ErrClosed
	}
	return h.file.check()
}

// Close releases the handle. Closing twice is a no-op.
func (h *handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.file.s.mu.Lock()
	delete(h.file.handles, h)
	h.file.s.mu.Unlock()
	return nil
}

// OpenHandles returns how many group, dataset and attribute handles opened
// through f are still open.
func (f *File) OpenHandles() int {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return len(f.handles)
}

// CloseHandles force-closes every handle still open through f and returns
// how many there were. Closed handles fail with ErrClosed afterwards.
func (f *File) CloseHandles() int {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	n := len(f.handles)
	for h := range f.handles {
		h.closed = true
		delete(f.handles, h)
	}
	return n
}
