package domain

import (
	"errors"
	"fmt"
	"strings"
)

// WriteStep — шаг многошаговой записи, на котором произошёл сбой.
type WriteStep string

const (
	StepReadOrder   WriteStep = "read_order"
	StepCreateItem  WriteStep = "create_item"
	StepCreateOrder WriteStep = "create_order"
	StepUpdateOrder WriteStep = "update_order"
	StepUpdateItem  WriteStep = "update_item"
	StepDeleteItem  WriteStep = "delete_item"
)

// WriteError описывает сбой многошаговой записи вместе с уже применённым прогрессом,
// чтобы вызывающий мог выполнить компенсацию.
type WriteError struct {
	// Op — имя операции репозитория.
	Op string
	// Step — шаг, на котором произошёл сбой.
	Step WriteStep
	// Index — позиция элемента в шаге (-1, если шаг не поэлементный).
	Index int
	// Created — идентификаторы записей, созданных до сбоя.
	Created []string
	// Updated — идентификаторы записей, обновлённых до сбоя.
	Updated []string
	// Deleted — идентификаторы записей, удалённых до сбоя.
	Deleted []string
	// Err — исходная ошибка хранилища.
	Err error
}

// Partial сообщает, были ли применены записи до сбоя.
func (e *WriteError) Partial() bool {
	return len(e.Created) > 0 || len(e.Updated) > 0 || len(e.Deleted) > 0
}

func (e *WriteError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: step %s", e.Op, e.Step)
	if e.Index >= 0 {
		fmt.Fprintf(&b, "[%d]", e.Index)
	}
	if e.Partial() {
		fmt.Fprintf(&b, " (created=%d updated=%d deleted=%d)", len(e.Created), len(e.Updated), len(e.Deleted))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap отдаёт класс ошибки (PartialFailure/StoreUnavailable) и исходную ошибку.
func (e *WriteError) Unwrap() []error {
	errs := make([]error, 0, 2)
	switch {
	case e.Partial():
		errs = append(errs, ErrPartialFailure)
	case errors.Is(e.Err, ErrNotFound):
	default:
		errs = append(errs, ErrStoreUnavailable)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// AsWriteError извлекает WriteError из цепочки ошибок.
func AsWriteError(err error) (*WriteError, bool) {
	var we *WriteError
	if errors.As(err, &we) {
		return we, true
	}
	return nil, false
}
