package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// defaultSpoolThreshold is how much data stays in memory before the spool
// overflows to a temp file.
const defaultSpoolThreshold = 20 << 20 // 20 MiB

// Spool is a write buffer that keeps small exports in memory and spills
// large ones to a temp file, so a table export is never materialized fully
// in process memory.
type Spool struct {
	threshold int
	buf       bytes.Buffer
	file      *os.File
	size      int64
}

// NewSpool creates a spool that spills past threshold bytes. A non-positive
// threshold selects the default.
func NewSpool(threshold int) *Spool {
	if threshold <= 0 {
		threshold = defaultSpoolThreshold
	}
	return &Spool{threshold: threshold}
}

func (s *Spool) Write(p []byte) (int, error) {
	if s.file == nil && s.buf.Len()+len(p) > s.threshold {
		if err := s.spill(); err != nil {
			return 0, err
		}
	}

	var n int
	var err error
	if s.file != nil {
		n, err = s.file.Write(p)
	} else {
		n, err = s.buf.Write(p)
	}
	s.size += int64(n)
	return n, err
}

func (s *Spool) spill() error {
	f, err := os.CreateTemp("", "finsync-export-*")
	if err != nil {
		return fmt.Errorf("spool spill: %w", err)
	}
	if _, err := f.Write(s.buf.Bytes()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("spool spill: %w", err)
	}
	s.buf.Reset()
	s.file = f
	return nil
}

// Size is the number of bytes written so far.
func (s *Spool) Size() int64 { return s.size }

// Spilled reports whether the spool overflowed to disk.
func (s *Spool) Spilled() bool { return s.file != nil }

// Reader rewinds the spool and returns a reader over everything written.
// No writes may follow.
func (s *Spool) Reader() (io.Reader, error) {
	if s.file != nil {
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("spool rewind: %w", err)
		}
		return s.file, nil
	}
	return bytes.NewReader(s.buf.Bytes()), nil
}

// Close releases the spill file if one was created.
func (s *Spool) Close() error {
	if s.file == nil {
		return nil
	}
	name := s.file.Name()
	err := s.file.Close()
	if rmErr := os.Remove(name); err == nil {
		err = rmErr
	}
	s.file = nil
	return err
}
