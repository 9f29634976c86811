package speech

import (
	"encoding/binary"
	"strconv"
	"strings"
)

const defaultSampleRate = 24000

// sampleRateFromMime reads the rate parameter out of a mime type such as
// "audio/L16;codec=pcm;rate=24000".
func sampleRateFromMime(mime string) int {
	for _, part := range strings.Split(mime, ";") {
		part = strings.TrimSpace(part)
		if rest, ok := strings.CutPrefix(part, "rate="); ok {
			if rate, err := strconv.Atoi(rest); err == nil && rate > 0 {
				return rate
			}
		}
	}
	return defaultSampleRate
}

// wrapPCM16 prefixes raw little-endian 16-bit mono PCM with a RIFF/WAVE
// header so browsers can play it directly.
func wrapPCM16(pcm []byte, sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	out := make([]byte, 0, 44+len(pcm))
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(36+len(pcm)))
	out = append(out, "WAVE"...)
	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, 16)
	out = binary.LittleEndian.AppendUint16(out, 1) // PCM
	out = binary.LittleEndian.AppendUint16(out, channels)
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(byteRate))
	out = binary.LittleEndian.AppendUint16(out, uint16(blockAlign))
	out = binary.LittleEndian.AppendUint16(out, bitsPerSample)
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(pcm)))
	return append(out, pcm...)
}
