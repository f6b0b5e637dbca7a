package service

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"deepfake-detector-go/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Workspace рабочая папка одного запуска для извлечённых кадров
type Workspace struct {
	ID  string
	Dir string
}

// WorkspaceManager выдаёт каждому запуску собственную подпапку в baseDir,
// чтобы параллельные проверки не видели и не удаляли чужие кадры
type WorkspaceManager struct {
	baseDir string
	logger  *logrus.Logger
}

// NewWorkspaceManager создает менеджер рабочих папок
func NewWorkspaceManager(baseDir string, logger *logrus.Logger) *WorkspaceManager {
	return &WorkspaceManager{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Create создает папку для запуска с идентификатором id
func (m *WorkspaceManager) Create(id string) (*Workspace, error) {
	if err := os.MkdirAll(m.baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root: %w", err)
	}

	dir, err := os.MkdirTemp(m.baseDir, id+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	m.logger.Debugf("Создана рабочая папка %s", dir)
	return &Workspace{ID: id, Dir: dir}, nil
}

// WorkspaceCleaner удаляет временные файлы после инференса
type WorkspaceCleaner struct {
	logger *logrus.Logger
}

// NewWorkspaceCleaner создает очиститель рабочих папок
func NewWorkspaceCleaner(logger *logrus.Logger) *WorkspaceCleaner {
	return &WorkspaceCleaner{logger: logger}
}

// Clean удаляет все обычные файлы в рабочей папке, затем саму папку.
// Ошибки удаления только логируются: очистка не должна ломать ответ.
func (c *WorkspaceCleaner) Clean(ws *Workspace) {
	if ws == nil || ws.Dir == "" {
		return
	}

	entries, err := os.ReadDir(ws.Dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warnf("Не удалось прочитать рабочую папку %s: %v", ws.Dir, err)
			metrics.CleanupFailuresTotal.Inc()
		}
		return
	}

	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(ws.Dir, entry.Name())
		if err := os.Remove(path); err != nil {
			c.logger.Warnf("Ошибка удаления файла %s: %v", path, err)
			metrics.CleanupFailuresTotal.Inc()
			continue
		}
		removed++
	}

	if err := os.Remove(ws.Dir); err != nil {
		c.logger.Warnf("Не удалось удалить рабочую папку %s: %v", ws.Dir, err)
		metrics.CleanupFailuresTotal.Inc()
		return
	}

	c.logger.Debugf("Рабочая папка %s очищена, удалено файлов: %d", ws.Dir, removed)
}
