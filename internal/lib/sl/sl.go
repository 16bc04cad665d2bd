// Package sl содержит вспомогательные функции для работы с логгером slog.
// Основная цель — упростить формирование структурированных полей лога.
package sl

import "log/slog"

// Err возвращает slog.Attr с ключом "error" и значением текста ошибки.
//
// Пример:
//
//	log.Error("failed to sync entitlement", sl.Err(err))
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Event возвращает slog.Attr с ключом "event_id" — единообразный ключ
// для трассировки webhook-событий по логам всех компонентов.
func Event(eventID string) slog.Attr {
	return slog.Attr{
		Key:   "event_id",
		Value: slog.StringValue(eventID),
	}
}
