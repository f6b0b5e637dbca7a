package filename

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// AllowedVideoExtensions допустимые расширения загружаемых видео
var AllowedVideoExtensions = map[string]bool{
	"mp4": true,
	"avi": true,
	"mov": true,
	"mkv": true,
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Secure приводит имя файла к безопасному виду: только ASCII, без
// разделителей пути, пробелы заменены на "_", ведущие и хвостовые "." и "_"
// срезаны. Может вернуть пустую строку.
func Secure(name string) string {
	name = norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range name {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		}
	}

	name = strings.NewReplacer("/", " ", "\\", " ").Replace(b.String())
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")

	return strings.Trim(name, "._")
}

// HasAllowedExtension проверяет расширение исходного имени файла
func HasAllowedExtension(name string) bool {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return false
	}
	return AllowedVideoExtensions[strings.ToLower(name[idx+1:])]
}
