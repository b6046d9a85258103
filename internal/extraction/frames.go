package extraction

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

// Sampler extracts still frames from a video upload.
type Sampler interface {
	// SampleFrames returns JPEG-encoded frames from the video bytes.
	SampleFrames(ctx context.Context, data []byte) ([][]byte, error)
}

// FFmpegSampler samples frames by shelling out to ffmpeg. A frame that
// cannot be extracted (video shorter than the timestamp, typically) is
// logged and skipped.
type FFmpegSampler struct {
	Binary     string
	Timestamps []float64
}

// NewFFmpegSampler creates a sampler with the default probe points.
func NewFFmpegSampler() *FFmpegSampler {
	return &FFmpegSampler{
		Binary:     "ffmpeg",
		Timestamps: []float64{1.0, 2.5, 4.0},
	}
}

// SampleFrames writes the video to a temp file and extracts one JPEG per
// configured timestamp.
func (s *FFmpegSampler) SampleFrames(ctx context.Context, data []byte) ([][]byte, error) {
	tmp, err := os.CreateTemp("", "receipt-video-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing temp file: %w", err)
	}

	frames := make([][]byte, 0, len(s.Timestamps))
	for _, ts := range s.Timestamps {
		frame, err := s.extractFrame(ctx, tmp.Name(), ts)
		if err != nil {
			slog.Warn("Failed to extract frame", "timestamp", ts, "error", err)
			continue
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func (s *FFmpegSampler) extractFrame(ctx context.Context, path string, ts float64) ([]byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, s.Binary,
		"-ss", fmt.Sprintf("%.3f", ts),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2",
		"-vcodec", "mjpeg",
		"pipe:1",
	)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running ffmpeg: %w", err)
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame at %.1fs", ts)
	}
	return out.Bytes(), nil
}
