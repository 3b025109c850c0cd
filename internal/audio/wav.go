package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// CanonicalSampleRate is the rate the recognition engine expects.
const CanonicalSampleRate = 16000

const (
	wavHeaderSize = 44
	pcmFormat     = 1
)

var (
	ErrNotWav            = errors.New("not a wav container")
	ErrUnsupportedFormat = errors.New("unsupported sample format")
)

// Format describes the PCM layout declared in a container header.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

func CanonicalFormat() Format {
	return Format{
		SampleRate:    CanonicalSampleRate,
		Channels:      1,
		BitsPerSample: 16,
	}
}

// EncodeWav packages 16-bit PCM samples into a self-describing RIFF/WAVE
// container. Samples are interleaved when format.Channels > 1.
func EncodeWav(samples []int16, format Format) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, wavHeaderSize+dataLen)

	blockAlign := format.Channels * 2
	byteRate := format.SampleRate * blockAlign

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], pcmFormat)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(format.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(format.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[wavHeaderSize+i*2:], uint16(s))
	}

	return buf
}

// DecodeWav parses a RIFF/WAVE container holding 16-bit PCM and returns the
// interleaved samples along with the declared format.
func DecodeWav(data []byte) ([]int16, Format, error) {
	if len(data) < wavHeaderSize {
		return nil, Format{}, ErrNotWav
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, Format{}, ErrNotWav
	}

	var format Format
	var pcm []byte

	// walk the chunk list; fmt must precede data
	off := 12
	haveFmt := false
	for off+8 <= len(data) {
		chunkId := string(data[off : off+4])
		chunkLen := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+chunkLen > len(data) {
			return nil, Format{}, fmt.Errorf("truncated chunk %q", chunkId)
		}

		switch chunkId {
		case "fmt ":
			if chunkLen < 16 {
				return nil, Format{}, fmt.Errorf("short fmt chunk: %d bytes", chunkLen)
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			format.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			format.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			if audioFormat != pcmFormat || format.BitsPerSample != 16 {
				return nil, Format{}, ErrUnsupportedFormat
			}
			if format.Channels < 1 || format.SampleRate < 1 {
				return nil, Format{}, ErrUnsupportedFormat
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, Format{}, errors.New("data chunk before fmt chunk")
			}
			pcm = data[body : body+chunkLen]
		}

		// chunks are word aligned
		off = body + chunkLen + chunkLen%2
	}

	if !haveFmt || pcm == nil {
		return nil, Format{}, ErrNotWav
	}

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}

	return samples, format, nil
}
