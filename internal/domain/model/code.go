package model

import "time"

// Code — QR-код, привязывающий физический объект к аудиозаписи.
// Хранится в таблице qr_codes. Запись неизменяема после создания.
type Code struct {
	// ID — UUID записи
	ID string
	// Token — короткий уникальный токен (8 символов, [a-z0-9])
	Token string
	// CreatedAt — время создания записи
	CreatedAt time.Time
}

// CodeWithAudio — Code с флагом наличия привязанной аудиозаписи.
// Используется в админ-панели и CSV-экспорте.
type CodeWithAudio struct {
	Code
	// HasAudio — true, если для кода существует хотя бы один Attachment
	HasAudio bool
}
