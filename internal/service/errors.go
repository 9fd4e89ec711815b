// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrTokenSpace — не удалось выпустить уникальные токены за отведённое число попыток.
	ErrTokenSpace = errors.New("не удалось сгенерировать уникальные токены")
)
