package video

import (
	"context"
	"io"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStreamInfo(t *testing.T) {
	cases := []struct {
		name   string
		output string
		want   streamInfo
	}{
		{
			name:   "packet count",
			output: `{"streams": [{"width": 640, "height": 360, "nb_frames": "299", "nb_read_packets": "300"}]}`,
			want:   streamInfo{frames: 300, width: 640, height: 360},
		},
		{
			name:   "falls back to nb_frames",
			output: `{"streams": [{"width": 320, "height": 240, "nb_frames": "42"}]}`,
			want:   streamInfo{frames: 42, width: 320, height: 240},
		},
		{
			name:   "unknown count",
			output: `{"streams": [{"width": 320, "height": 240, "nb_frames": "N/A"}]}`,
			want:   streamInfo{width: 320, height: 240},
		},
		{
			name:   "no video stream",
			output: `{"streams": []}`,
			want:   streamInfo{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseStreamInfo([]byte(tc.output))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := parseStreamInfo([]byte("not json"))
	assert.Error(t, err)
}

func TestFFmpegOpener_MissingFile(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	o := NewFFmpegOpener("ffmpeg", "ffprobe", logger)
	_, err := o.Open(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	assert.Error(t, err)
}

func TestFFmpegSource_Generated(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}

	path := filepath.Join(t.TempDir(), "test.mp4")
	gen := exec.Command("ffmpeg", "-v", "error", "-f", "lavfi", "-i", "testsrc=size=64x48:rate=10:duration=1",
		"-pix_fmt", "yuv420p", "-y", path)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot generate test video: %v: %s", err, out)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	src, err := NewFFmpegOpener("ffmpeg", "ffprobe", logger).Open(context.Background(), path)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 10, src.FrameCount())
	w, h := src.Size()
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)

	img, err := src.Frame(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())

	_, err = src.Frame(context.Background(), 10)
	assert.Error(t, err)

	require.NoError(t, src.Close())
	_, err = src.Frame(context.Background(), 0)
	assert.Error(t, err)
}
