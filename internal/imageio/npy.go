package imageio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sbinet/npyio/npy"
	"github.com/x448/float16"
)

var npyMagic = []byte("\x93NUMPY")

// npyHeader returns the version 1.0 header for a little-endian C-order
// array, padded so the data starts on a 64-byte boundary.
//
// Only the float16 path uses it.
func npyHeader(descr string, shape []int) []byte {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	tuple := "(" + strings.Join(dims, ", ")
	if len(shape) == 1 {
		tuple += ","
	}
	tuple += ")"

	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descr, tuple)

	// magic(6) + version(2) + length(2) + dict + padding + '\n'
	total := len(npyMagic) + 4 + len(dict) + 1
	pad := (64 - total%64) % 64
	dict += strings.Repeat(" ", pad) + "\n"

	header := make([]byte, 0, len(npyMagic)+4+len(dict))
	header = append(header, npyMagic...)
	header = append(header, 1, 0)
	header = binary.LittleEndian.AppendUint16(header, uint16(len(dict)))
	return append(header, dict...)
}

// WriteNPY writes data with the given shape as a .npy array. With half set
// the values are stored as float16, otherwise as float32.
func WriteNPY(w io.Writer, shape []int, data []float32, half bool) error {
	n := 1
	for _, d := range shape {
		n *= d
	}
	if n != len(data) {
		return fmt.Errorf("npy: shape %v holds %d values, got %d", shape, n, len(data))
	}

	if half {
		return writeHalfNPY(w, shape, data)
	}

	nw, err := npy.NewWriter(w)
	if err != nil {
		return err
	}
	nw.Header.Descr.Shape = append([]int{}, shape...)
	return nw.Write(data)
}

// writeHalfNPY stores data as '<f2'. npy.Writer derives the dtype from the
// Go element type and has no float16 type, so the header is written here.
func writeHalfNPY(w io.Writer, shape []int, data []float32) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(npyHeader("<f2", shape)); err != nil {
		return err
	}

	var buf [2]byte
	for _, v := range data {
		binary.LittleEndian.PutUint16(buf[:], float16.Fromfloat32(v).Bits())
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveNPY writes data to the file at path.
func SaveNPY(path string, shape []int, data []float32, half bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := WriteNPY(f, shape, data, half); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
