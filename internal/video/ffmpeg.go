package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strconv"

	"github.com/sirupsen/logrus"
)

// FFmpegOpener открывает видео через ffprobe и декодирует кадры через ffmpeg
type FFmpegOpener struct {
	ffmpegPath  string
	ffprobePath string
	logger      *logrus.Logger
}

// NewFFmpegOpener создает декодер на основе бинарников ffmpeg и ffprobe
func NewFFmpegOpener(ffmpegPath, ffprobePath string, logger *logrus.Logger) *FFmpegOpener {
	return &FFmpegOpener{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      logger,
	}
}

// CheckAvailable проверяет, что ffmpeg и ffprobe есть в PATH
func (o *FFmpegOpener) CheckAvailable() error {
	for _, bin := range []string{o.ffmpegPath, o.ffprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found: %w", bin, err)
		}
	}
	return nil
}

type streamInfoOutput struct {
	Streams []streamInfoEntry `json:"streams"`
}

type streamInfoEntry struct {
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	NbFrames      string `json:"nb_frames"`
	NbReadPackets string `json:"nb_read_packets"`
}

// Open запрашивает у ffprobe число кадров и размеры первого видеопотока
func (o *FFmpegOpener) Open(ctx context.Context, path string) (Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open video: %w", err)
	}

	cmd := exec.CommandContext(ctx, o.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=width,height,nb_frames,nb_read_packets",
		"-of", "json",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	info, err := parseStreamInfo(output)
	if err != nil {
		return nil, err
	}

	o.logger.Debugf("ffprobe: %d кадров, %dx%d", info.frames, info.width, info.height)

	return &ffmpegSource{
		path:       path,
		ffmpegPath: o.ffmpegPath,
		frames:     info.frames,
		width:      info.width,
		height:     info.height,
	}, nil
}

type streamInfo struct {
	frames int
	width  int
	height int
}

// parseStreamInfo разбирает JSON ffprobe. Отсутствие видеопотока даёт 0 кадров.
func parseStreamInfo(output []byte) (streamInfo, error) {
	var info streamInfoOutput
	if err := json.Unmarshal(output, &info); err != nil {
		return streamInfo{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(info.Streams) == 0 {
		return streamInfo{}, nil
	}

	s := info.Streams[0]
	res := streamInfo{width: s.Width, height: s.Height}
	for _, v := range []string{s.NbReadPackets, s.NbFrames} {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			res.frames = n
			break
		}
	}
	return res, nil
}

type ffmpegSource struct {
	path       string
	ffmpegPath string
	frames     int
	width      int
	height     int
	closed     bool
}

func (s *ffmpegSource) FrameCount() int {
	return s.frames
}

func (s *ffmpegSource) Size() (int, int) {
	return s.width, s.height
}

// Frame выбирает кадр фильтром select и получает его PNG через stdout
func (s *ffmpegSource) Frame(ctx context.Context, index int) (image.Image, error) {
	if s.closed {
		return nil, fmt.Errorf("video source %s is closed", s.path)
	}
	if index < 0 || index >= s.frames {
		return nil, fmt.Errorf("frame index %d out of range [0, %d)", index, s.frames)
	}

	cmd := exec.CommandContext(ctx, s.ffmpegPath,
		"-v", "error",
		"-i", s.path,
		"-vf", fmt.Sprintf(`select=eq(n\,%d)`, index),
		"-vsync", "0",
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed on frame %d: %w, output: %s", index, err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("frame %d: %w", index, ErrNoFrame)
	}

	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %d: %w", index, err)
	}
	return img, nil
}

// Close у ffmpeg нет долгоживущих ресурсов, источник лишь помечается закрытым
func (s *ffmpegSource) Close() error {
	s.closed = true
	return nil
}
