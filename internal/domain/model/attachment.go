package model

import "time"

// Attachment — аудиозапись, привязанная к QR-коду.
// Хранится в таблице audio_memories. Код считается «с аудио»,
// как только для него существует хотя бы один Attachment.
type Attachment struct {
	// ID — UUID записи
	ID string
	// CodeID — UUID владеющего QR-кода
	CodeID string
	// AudioURL — публичный URL аудиофайла в object storage
	AudioURL string
	// UploaderEmail — email загрузившего пользователя
	UploaderEmail string
	// CreatedAt — время создания записи
	CreatedAt time.Time
}
