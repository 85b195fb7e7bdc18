package usecase

import (
	"errors"
	"fmt"
)

type HTTPError struct {
	Status  int
	Message string
	//trueならクライアントは最初からやり直す（新しいセッションを作る）
	Retry bool
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func NewRetryError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
		Retry:   true,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}
