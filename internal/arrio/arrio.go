// Package arrio defines the record stream contracts the rest of the project
// is built on, mirroring the shape of the stdlib io package: readers hand out
// arrow.Record batches until io.EOF, writers consume them, and Copy moves
// everything from one to the other.
package arrio

import (
	"errors"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
)

// Reader is the read side of a record stream. Read returns the next record
// and io.EOF once the stream is exhausted. Records returned by Read are
// retained for the caller; the caller releases them when done.
type Reader interface {
	Read() (arrow.Record, error)
	Close() error
}

// Writer is the write side of a record stream. Close flushes any buffered
// state; a stream is not durable until Close returns nil.
type Writer interface {
	Write(arrow.Record) error
	Close() error
}

// Copy drains src into dst and returns the number of records copied. A
// successful Copy returns err == nil, not io.EOF: reading to the end of the
// stream is the point, not a failure. Records are released after each write.
func Copy(dst Writer, src Reader) (n int64, err error) {
	for {
		rec, err := src.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		werr := dst.Write(rec)
		rec.Release()
		if werr != nil {
			return n, werr
		}
		n++
	}
}

// CopyN copies at most n records from src to dst. On return, copied == n if
// and only if err == nil; an early io.EOF is reported as such.
func CopyN(dst Writer, src Reader, n int64) (copied int64, err error) {
	for ; copied < n; copied++ {
		rec, err := src.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, io.EOF
			}
			return copied, err
		}
		werr := dst.Write(rec)
		rec.Release()
		if werr != nil {
			return copied, werr
		}
	}
	return copied, nil
}
