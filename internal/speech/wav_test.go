package speech

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleRateFromMime(t *testing.T) {
	tests := []struct {
		name string
		mime string
		want int
	}{
		{"gemini pcm", "audio/L16;codec=pcm;rate=24000", 24000},
		{"spaced params", "audio/L16; codec=pcm; rate=16000", 16000},
		{"no rate", "audio/L16;codec=pcm", defaultSampleRate},
		{"empty", "", defaultSampleRate},
		{"bad rate", "audio/L16;rate=abc", defaultSampleRate},
		{"zero rate", "audio/L16;rate=0", defaultSampleRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sampleRateFromMime(tt.mime))
		})
	}
}

func TestWrapPCM16Header(t *testing.T) {
	pcm := make([]byte, 480)
	wav := wrapPCM16(pcm, 24000)

	require.Len(t, wav, 44+len(pcm))
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(wav[4:8]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[20:22]), "PCM format tag")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]), "mono")
	assert.Equal(t, uint32(24000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(wav[28:32]), "byte rate")
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(wav[32:34]), "block align")
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]), "bits per sample")
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
}

func TestWrapPCM16Empty(t *testing.T) {
	wav := wrapPCM16(nil, 16000)
	require.Len(t, wav, 44)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(wav[40:44]))
}
