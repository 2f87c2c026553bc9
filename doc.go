// Package h5store reads and writes multidimensional numeric arrays, text
// and their metadata in HDF5 files.
//
// A Container is one open file. Everything inside it is addressed by a
// "/"-separated path from the root group. Groups are created on demand,
// datasets hold one typed N-dimensional array each, and both carry named
// attributes:
//
//	c, err := h5store.Open("scan.h5", h5store.WriteOrNew)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	volume := h5store.NewArray[float32](64, 256, 256)
//	if err := h5store.WriteDataset(c, "/data/volume", volume, h5store.WithCompression(6)); err != nil {
//	    return err
//	}
//	if err := c.WriteTextAttribute("units", "/data/volume", "HU"); err != nil {
//	    return err
//	}
//
// Element types are fixed at compile time by the Element constraint.
// Reads convert stored integers and floats of any width and byte order to
// the requested type. Complex values are stored as pairs along a trailing
// dimension of 2, and VectorsOf packs fixed-size vectors the same way.
//
// Files are locked against conflicting openers in other processes with
// an advisory lock, like the HDF5 library does. Opening the same file
// twice in one process shares it.
//
// Every error is an *Error whose Kind is one of ErrContainerNotOpen,
// ErrNotFound, ErrAlreadyExists, ErrTypeMismatch, ErrPermissionDenied,
// ErrLockConflict, ErrMalformed, ErrIOFailure or ErrCancelled; test for
// them with errors.Is.
package h5store
