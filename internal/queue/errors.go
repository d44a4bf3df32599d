package queue

import "errors"

// Типизированные ошибки ядра очереди. HTTP-слой сопоставляет их с кодами
// ответов через errors.Is, не разбирая текст сообщений.
var (
	// ErrQueueNotFound — очередь с указанным идентификатором не существует.
	ErrQueueNotFound = errors.New("очередь не найдена")
	// ErrEntryNotFound — запись с указанным идентификатором не существует.
	ErrEntryNotFound = errors.New("запись не найдена")
	// ErrInvalidRequest — поля не соответствуют типу очереди или переход
	// статуса не поддерживается.
	ErrInvalidRequest = errors.New("некорректный запрос")
	// ErrForbidden — инициатор не владелец записи и не администратор очереди.
	ErrForbidden = errors.New("доступ запрещён")
	// ErrConflict — параллельная мутация той же записи выиграла гонку.
	// Единственная ошибка, которую вызывающей стороне имеет смысл повторить.
	ErrConflict = errors.New("конфликт параллельного изменения")
)
