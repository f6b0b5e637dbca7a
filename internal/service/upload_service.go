package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"deepfake-detector-go/pkg/filename"

	"github.com/sirupsen/logrus"
)

// UploadService сохраняет загруженные видео и находит их для проверки
type UploadService struct {
	uploadDir string
	logger    *logrus.Logger
}

// NewUploadService создает сервис загрузок
func NewUploadService(uploadDir string, logger *logrus.Logger) *UploadService {
	return &UploadService{
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// Save сохраняет видео под очищенным именем. Данные пишутся во временный
// файл и переименовываются, так что /detect никогда не видит файл наполовину.
func (s *UploadService) Save(originalFilename string, videoData io.Reader) (string, string, error) {
	if !filename.HasAllowedExtension(originalFilename) {
		return "", "", ErrInvalidFileType
	}

	name := filename.Secure(originalFilename)
	if !filename.HasAllowedExtension(name) {
		return "", "", ErrInvalidFileType
	}

	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.uploadDir, ".upload-*")
	if err != nil {
		return "", "", fmt.Errorf("failed to create video file: %w", err)
	}
	tmpPath := tmp.Name()

	bytesWritten, err := io.Copy(tmp, videoData)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("failed to write video data: %w", err)
	}

	path := filepath.Join(s.uploadDir, name)
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("failed to store video file: %w", err)
	}

	s.logger.Infof("Видео файл сохранен: %s (записано %d байт)", path, bytesWritten)
	return name, path, nil
}

// Resolve возвращает путь к ранее загруженному видео. Имя очищается так же,
// как при загрузке, поэтому выйти за пределы папки загрузок нельзя.
func (s *UploadService) Resolve(videoFilename string) (string, error) {
	if videoFilename == "" {
		return "", ErrMissingParameter
	}

	name := filename.Secure(videoFilename)
	if name == "" {
		return "", ErrFileNotFound
	}

	path := filepath.Join(s.uploadDir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrFileNotFound
	}
	return path, nil
}
