package audio

import (
	"encoding/base64"
)

// Package audio provides audio format conversion functions

// ConvertPCM24kHzToMuLaw8kHz converts 16-bit little-endian PCM at 24kHz into
// the 8-bit mu-law 8kHz stream the telephony channel expects.
func ConvertPCM24kHzToMuLaw8kHz(pcm24k []byte) []byte {
	// First downsample from 24kHz to 8kHz (factor of 3)
	pcm8k := downsamplePCM(pcm24k, 3)

	// Then convert to mulaw
	mulaw := make([]byte, len(pcm8k)/2)
	for i := 0; i < len(pcm8k)-1; i += 2 {
		// Get 16-bit PCM sample (little-endian)
		sample := int16(pcm8k[i]) | int16(pcm8k[i+1])<<8
		mulaw[i/2] = linearToMulaw(sample)
	}

	return mulaw
}

func Base64ToBytes(base64String string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64String)
}

func BytesToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func mulawToLinear(mulawByte byte) int16 {
	const BIAS = 0x84

	// Invert all bits
	mulawByte = ^mulawByte

	// Extract sign, exponent, and mantissa
	sign := mulawByte & 0x80
	exponent := (mulawByte >> 4) & 0x07
	mantissa := mulawByte & 0x0F

	// Compute sample
	sample := int16(mantissa<<3 | 0x84)
	sample <<= exponent
	sample -= BIAS

	if sign != 0 {
		return -sample
	}
	return sample
}

func linearToMulaw(sample int16) byte {
	const BIAS = 0x84
	const CLIP = 32635

	sign := uint8(0)
	if sample < 0 {
		sign = 0x80
		sample = -sample
	}

	if sample > CLIP {
		sample = CLIP
	}

	sample += BIAS

	// Find the position of the most significant bit
	var exponent uint8
	for mask := int16(0x4000); mask != 0 && (sample&mask) == 0; mask >>= 1 {
		exponent++
	}

	mantissa := uint8((sample >> (exponent + 3)) & 0x0F)
	exponent = 7 - exponent

	return ^(sign | (exponent << 4) | mantissa)
}

func downsamplePCM(pcm []byte, factor int) []byte {
	// Simple downsampling - take every Nth sample
	samples := len(pcm) / 2 // 16-bit samples
	downsampled := make([]byte, (samples/factor)*2)

	j := 0
	for i := 0; i < len(pcm)-1; i += 2 * factor {
		if j < len(downsampled)-1 {
			downsampled[j] = pcm[i]
			downsampled[j+1] = pcm[i+1]
			j += 2
		}
	}

	return downsampled[:j]
}
