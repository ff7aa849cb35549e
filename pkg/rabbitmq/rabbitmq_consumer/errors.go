package rabbitmq_consumer

import "errors"

// permanentError помечает ошибку, которую бессмысленно ретраить
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent оборачивает ошибку обработчика: такое сообщение сразу уходит в финальный DLX
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent сообщает, помечена ли ошибка как постоянная
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
