package models

import "time"

// JournalEntry — запись дневника. Для сервиса учётных записей это
// объект каскадного удаления и источник ссылок на изображения.
type JournalEntry struct {
	ID          string    `json:"id"`
	UserUID     string    `json:"user_uid"`
	Content     string    `json:"content"`
	Attachments []string  `json:"attachments,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
