package app

import "fmt"

// DomainError is an error the HTTP layer maps directly onto a response:
// Status becomes the HTTP status, Code and Message the JSON body. Sync
// validation failures, missing bundles and bad pipeline names all surface
// this way.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
