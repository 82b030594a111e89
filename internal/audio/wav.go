package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Canonical audio format: mono, 16 kHz, 16-bit linear PCM.
const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
)

// wavHeader is the 44-byte RIFF/WAVE header for PCM audio.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// EncodeWAV wraps raw little-endian 16-bit PCM bytes in a WAV container
// at the canonical sample rate. An empty pcm buffer is valid and yields
// a header-only file.
func EncodeWAV(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm data length must be even, got %d bytes", len(pcm))
	}

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(pcm)),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   Channels,
		SampleRate:    SampleRate,
		ByteRate:      SampleRate * Channels * BitsPerSample / 8,
		BlockAlign:    Channels * BitsPerSample / 8,
		BitsPerSample: BitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(pcm)),
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("write WAV header: %w", err)
	}
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// wavFormat is the decoded fmt chunk plus the location of the data
// chunk payload.
type wavFormat struct {
	audioFormat   uint16
	numChannels   uint16
	sampleRate    uint32
	bitsPerSample uint16
	dataStart     int
	dataSize      uint32
}

// DecodeWAV validates a canonical WAV file and returns its PCM payload
// and sample rate.
func DecodeWAV(data []byte) ([]byte, int, error) {
	f, err := parseWAV(data)
	if err != nil {
		return nil, 0, err
	}

	if f.audioFormat != 1 {
		return nil, 0, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", f.audioFormat)
	}
	if f.bitsPerSample != BitsPerSample {
		return nil, 0, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", f.bitsPerSample)
	}
	if f.numChannels != Channels {
		return nil, 0, fmt.Errorf("unsupported channel count: %d (only mono is supported)", f.numChannels)
	}

	return data[f.dataStart : f.dataStart+int(f.dataSize)], int(f.sampleRate), nil
}

// WAVDuration returns the audio length in seconds encoded in a WAV
// file's headers, without decoding the payload.
func WAVDuration(data []byte) (float64, error) {
	f, err := parseWAV(data)
	if err != nil {
		return 0, err
	}
	if f.sampleRate == 0 {
		return 0, fmt.Errorf("invalid sample rate: 0")
	}

	bytesPerSample := uint32(f.bitsPerSample / 8)
	if bytesPerSample == 0 || f.numChannels == 0 {
		return 0, fmt.Errorf("invalid WAV format fields")
	}

	numFrames := f.dataSize / (bytesPerSample * uint32(f.numChannels))
	return float64(numFrames) / float64(f.sampleRate), nil
}

// parseWAV walks the RIFF chunk list until the data chunk. Encoders
// routinely place LIST/INFO or fact chunks between fmt and data
// (ffmpeg's WAV muxer does), so the layout cannot be assumed to be the
// fixed 44-byte header EncodeWAV writes.
func parseWAV(data []byte) (*wavFormat, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("WAV data too short: need at least 12 bytes, got %d", len(data))
	}
	if string(data[0:4]) != "RIFF" {
		return nil, fmt.Errorf("invalid WAV file: missing RIFF header")
	}
	if string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	var f wavFormat
	haveFmt := false

	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := binary.LittleEndian.Uint32(data[off+4 : off+8])
		body := off + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return nil, fmt.Errorf("invalid WAV file: truncated fmt chunk")
			}
			f.audioFormat = binary.LittleEndian.Uint16(data[body:])
			f.numChannels = binary.LittleEndian.Uint16(data[body+2:])
			f.sampleRate = binary.LittleEndian.Uint32(data[body+4:])
			f.bitsPerSample = binary.LittleEndian.Uint16(data[body+14:])
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("invalid WAV file: missing fmt chunk")
			}
			f.dataStart = body
			f.dataSize = size
			if body+int(size) > len(data) {
				f.dataSize = uint32(len(data) - body)
			}
			return &f, nil
		}

		off = body + int(size)
		if size%2 == 1 {
			off++ // chunks are word aligned
		}
	}

	return nil, fmt.Errorf("invalid WAV file: missing data chunk")
}
