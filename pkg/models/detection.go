package models

// UploadResponse представляет ответ на загрузку видео
type UploadResponse struct {
	Message  string `json:"message"`  // Сообщение о результате
	Filename string `json:"filename"` // Имя сохранённого файла (после очистки)
	Filepath string `json:"filepath"` // Путь к файлу на сервере
}

// DetectRequest представляет запрос на проверку видео
type DetectRequest struct {
	VideoFilename string `json:"videoFilename"` // Имя ранее загруженного файла
}

// DetectResponse представляет результат проверки видео
type DetectResponse struct {
	Detection  string   `json:"detection"`            // "real" или "fake"
	IsFake     bool     `json:"is_fake"`              // Удобный флаг для фронтенда
	Confidence *float64 `json:"confidence,omitempty"` // Уверенность 0-100, округлена до 2 знаков
	VideoPath  string   `json:"video_path,omitempty"` // Путь к проверенному файлу
}

// HealthResponse представляет ответ проверки здоровья сервиса
type HealthResponse struct {
	Status      string `json:"status"`       // Статус сервиса (healthy/unhealthy)
	ModelLoaded bool   `json:"model_loaded"` // Доступна ли модель классификатора
	Version     string `json:"version"`      // Версия сервиса
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}
