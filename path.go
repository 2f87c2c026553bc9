package h5store

import (
	"fmt"
	"strings"
)

// Normalize cleans an object path: empty and "." segments are dropped, a
// leading "/" is kept only if the input had one, and the result never
// ends in "/". A ".." segment anywhere is an error wrapping ErrMalformed;
// paths never climb out of a group.
//
//	Normalize("a//b/./c/") // "a/b/c"
//	Normalize("/a/./b")    // "/a/b"
//	Normalize("a/../b")    // ErrMalformed
//
// Normalize is idempotent.
func Normalize(path string) (string, error) {
	segs := strings.Split(path, "/")
	kept := segs[:0]
	for _, s := range segs {
		switch s {
		case "", ".":
			continue
		case "..":
			return "", fmt.Errorf("%w: path %q contains a \"..\" segment", ErrMalformed, path)
		}
		kept = append(kept, s)
	}
	joined := strings.Join(kept, "/")
	if strings.HasPrefix(path, "/") {
		return "/" + joined, nil
	}
	return joined, nil
}

// absolute normalizes path and anchors it at the root group, which every
// Container path is relative to.
func absolute(op, path string) (string, error) {
	p, err := Normalize(path)
	if err != nil {
		return "", &Error{Op: op, Path: path, Kind: ErrMalformed, Err: err}
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p, nil
}

// split returns the parent group and last segment of an absolute path.
// The root has no name.
func split(p string) (parent, name string) {
	i := strings.LastIndexByte(p, '/')
	if i <= 0 {
		return "/", p[i+1:]
	}
	return p[:i], p[i+1:]
}

func join(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}
