package registry

import (
	"fmt"
	"regexp"

	"golang.org/x/mod/semver"
)

// Формат ключа: lowercase snake_case, первая буква — буква, длина ≥ 2.
var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]+$`)

// Полная semver-строка: MAJOR.MINOR.PATCH обязательны.
// Сокращённые формы ("1", "1.2") отклоняются, хотя semver-пакет их принимает.
var fullVersionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+([-+].*)?$`)

// ValidateKey проверяет формат ключа алгоритма.
// Вызывается при публикации, не при resolve.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q (want lowercase snake_case, letter first, len >= 2)", ErrInvalidKey, key)
	}
	return nil
}

// ValidateVersion проверяет, что версия — полная semver-строка
// MAJOR.MINOR.PATCH[-prerelease][+build].
func ValidateVersion(version string) error {
	if !fullVersionPattern.MatchString(version) || !semver.IsValid("v"+version) {
		return fmt.Errorf("%w: %q", ErrInvalidVersion, version)
	}
	return nil
}
