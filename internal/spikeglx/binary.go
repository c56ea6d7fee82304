package spikeglx

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"

	"nwbconv/internal/services"
)

// ReadBinary loads an interleaved little-endian int16 recording. maxBytes of
// zero disables the size limit.
func ReadBinary(path string, channels int, maxBytes uint64) ([]int16, error) {
	if channels <= 0 {
		return nil, services.Wrap(services.ErrValidation, "spikeglx", "read binary", "channel count must be positive", nil)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "spikeglx", "open binary", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()
	if maxBytes > 0 && uint64(size) > maxBytes {
		return nil, services.Wrap(services.ErrValidation, "spikeglx", "read binary",
			fmt.Sprintf("%s is %s, above the %s limit", path,
				datasize.ByteSize(size).HumanReadable(), datasize.ByteSize(maxBytes).HumanReadable()), nil)
	}
	frame := int64(2 * channels)
	if size%frame != 0 {
		return nil, services.Wrap(services.ErrDataShape, "spikeglx", "read binary",
			fmt.Sprintf("%s: %d bytes is not a whole number of %d-channel frames", path, size, channels), nil)
	}

	data := make([]int16, size/2)
	if err := binary.Read(bufio.NewReaderSize(f, 1<<20), binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
