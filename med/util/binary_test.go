package util

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/batchatco/go-thrower"
)

// errWriter is an io.Writer and io.ByteWriter that always returns an error.
type errWriter struct{ err error }

func (e errWriter) Write(p []byte) (int, error) { return 0, e.err }
func (e errWriter) WriteByte(c byte) error      { return e.err }

// errReader is an io.Reader that always returns an error.
type errReader struct{ err error }

func (e errReader) Read(p []byte) (int, error) { return 0, e.err }

var errIO = errors.New("io error")

func catch(f func()) (err error) {
	defer thrower.RecoverError(&err)
	f()
	return nil
}

func TestMustWriteLE(t *testing.T) {
	var buf bytes.Buffer
	MustWriteLE(&buf, uint64(0x0102030405060708))
	want := []byte{8, 7, 6, 5, 4, 3, 2, 1}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got %v, want %v", buf.Bytes(), want)
	}
}

func TestMustWriteByteAndRaw(t *testing.T) {
	var buf bytes.Buffer
	MustWriteByte(&buf, 'O')
	MustWriteRaw(&buf, []byte("HDR"))
	if buf.String() != "OHDR" {
		t.Errorf("got %q, want %q", buf.String(), "OHDR")
	}
}

func TestMustWriteZeros(t *testing.T) {
	var buf bytes.Buffer
	MustWriteZeros(&buf, 5)
	MustWriteZeros(&buf, 0)
	MustWriteZeros(&buf, -3)
	if !bytes.Equal(buf.Bytes(), make([]byte, 5)) {
		t.Errorf("got %v, want 5 zeros", buf.Bytes())
	}
}

func TestMustRead(t *testing.T) {
	var buf bytes.Buffer
	MustWrite(&buf, binary.BigEndian, []int32{-1, 2})
	got := make([]int32, 2)
	MustRead(&buf, binary.BigEndian, got)
	if got[0] != -1 || got[1] != 2 {
		t.Errorf("got %v, want [-1 2]", got)
	}
}

func TestMustErrors(t *testing.T) {
	cases := map[string]func(){
		"write": func() { MustWriteLE(errWriter{errIO}, uint32(0)) },
		"byte":  func() { MustWriteByte(errWriter{errIO}, 0) },
		"raw":   func() { MustWriteRaw(errWriter{errIO}, []byte{1}) },
		"zeros": func() { MustWriteZeros(errWriter{errIO}, 8) },
		"read": func() {
			var got uint32
			MustRead(errReader{errIO}, binary.LittleEndian, &got)
		},
	}
	for name, f := range cases {
		if err := catch(f); !errors.Is(err, errIO) {
			t.Errorf("%s: got %v, want %v", name, err, errIO)
		}
	}
}
