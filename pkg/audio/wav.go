package audio

import (
	"fmt"
	"io"
	"os"

	wavlib "github.com/youpy/go-wav"
)

// ReadAsset opens a WAV asset, verifies it meets the playback format
// requirements, and returns its raw PCM payload.
func ReadAsset(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open asset %q: %w", path, err)
	}
	defer f.Close()

	r := wavlib.NewReader(f)
	format, err := r.Format()
	if err != nil {
		return nil, fmt.Errorf("audio: parse asset %q: %w", path, err)
	}
	if err := checkFormat(path, format); err != nil {
		return nil, err
	}

	pcm, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("audio: read asset %q: %w", path, err)
	}
	return pcm, nil
}

// CheckFile verifies that the WAV file at path is mono, 16 kHz, 16-bit PCM.
// Run it against every configured asset before the pipeline starts.
func CheckFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("audio: open asset %q: %w", path, err)
	}
	defer f.Close()

	format, err := wavlib.NewReader(f).Format()
	if err != nil {
		return fmt.Errorf("audio: parse asset %q: %w", path, err)
	}
	return checkFormat(path, format)
}

func checkFormat(path string, format *wavlib.WavFormat) error {
	if format.AudioFormat != wavlib.AudioFormatPCM {
		return fmt.Errorf("audio: asset %q: audio format %d is not PCM", path, format.AudioFormat)
	}
	if format.NumChannels != RequiredChannels {
		return fmt.Errorf("audio: asset %q: %d channels, want mono", path, format.NumChannels)
	}
	if format.SampleRate != RequiredSampleRate {
		return fmt.Errorf("audio: asset %q: sample rate %d Hz, want %d Hz", path, format.SampleRate, RequiredSampleRate)
	}
	if format.BitsPerSample != RequiredBits {
		return fmt.Errorf("audio: asset %q: %d-bit samples, want %d-bit", path, format.BitsPerSample, RequiredBits)
	}
	return nil
}
