package domain

import "errors"

var (
	// ErrNotFound возвращается, если запрошенная запись отсутствует в хранилище.
	ErrNotFound = errors.New("record not found")
	// ErrStoreUnavailable — ошибка транспорта или удалённого хранилища.
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrPartialFailure — многошаговая запись прервалась после части успешных шагов.
	ErrPartialFailure = errors.New("partial failure")
	// ErrCircuitOpen — вызов отклонён circuit breaker'ом без обращения к хранилищу.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrRecordConflict — запись с таким идентификатором уже существует.
	ErrRecordConflict = errors.New("record already exists")
	// ErrRecordRejected — хранилище отклонило запрос как некорректный (валидация, фильтр).
	ErrRecordRejected = errors.New("record rejected by store")

	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательного количества в позиции.
	ErrItemQtyInvalid = errors.New("item qty must be non-negative")
	// Ошибка несоответствия grand_total сумме total_amt позиций.
	ErrGrandTotalMismatch = errors.New("grand total does not match items sum")
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("order id is required")
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerIDRequired = errors.New("customer id is required")
	// ErrInvalidFilter — выражение фильтра не удалось разобрать.
	ErrInvalidFilter = errors.New("invalid filter expression")
	// ErrInvalidSort — выражение сортировки не удалось разобрать.
	ErrInvalidSort = errors.New("invalid sort expression")
	// ErrInvalidField — имя поля содержит недопустимые символы.
	ErrInvalidField = errors.New("invalid field name")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsNotFound проверяет, означает ли ошибка отсутствие записи.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStoreUnavailable проверяет, является ли ошибка сбоем хранилища (включая частичный сбой).
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrPartialFailure)
}
