package speech

import (
	"encoding/binary"
	"fmt"
)

// wavDuration computes the play length of a PCM WAV file from its header.
// Providers that stream raw WAV bytes do not report a duration, so the
// caller derives it here.
func wavDuration(data []byte) (float64, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, fmt.Errorf("not a wav file")
	}

	var (
		byteRate uint32
		dataSize uint32
	)

	// Walk the chunks; fmt carries the byte rate, data carries the samples.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := binary.LittleEndian.Uint32(data[off+4 : off+8])
		body := off + 8

		switch id {
		case "fmt ":
			if body+16 > len(data) {
				return 0, fmt.Errorf("truncated fmt chunk")
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
		case "data":
			dataSize = size
		}

		off = body + int(size)
		if size%2 == 1 {
			off++
		}
	}

	if byteRate == 0 {
		return 0, fmt.Errorf("missing fmt chunk")
	}
	return float64(dataSize) / float64(byteRate), nil
}
