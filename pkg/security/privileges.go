package security

import (
	"os"
	"os/user"
	"runtime"
)

// IsAdmin проверяет, запущена ли программа с административными правами.
// Unsafe режим выполнения запросов доступен только таким пользователям.
//
// Для Unix/Linux систем проверяет effective UID (euid == 0 означает root).
// Для Windows пытается открыть защищенный системный ресурс.
func IsAdmin() bool {
	if runtime.GOOS == "windows" {
		return isWindowsAdmin()
	}
	// Unix/Linux/macOS: проверяем effective UID
	return os.Geteuid() == 0
}

// isWindowsAdmin проверяет административные права в Windows.
//
// Обычные пользователи не могут открыть \\.\PHYSICALDRIVE0,
// только администраторы.
func isWindowsAdmin() bool {
	file, err := os.Open("\\\\.\\PHYSICALDRIVE0")
	if err != nil {
		return false
	}
	file.Close()
	return true
}

// GetCurrentUser возвращает имя текущего пользователя для журнала аудита
func GetCurrentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}

	// Fallback на переменные окружения
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	if name := os.Getenv("USERNAME"); name != "" {
		return name
	}
	return "unknown"
}
