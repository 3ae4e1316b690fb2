package model

import "errors"

var (
	ErrPrinterNotFound  = errors.New("printer not found")
	ErrNoAccountPrinter = errors.New("no account printer for business")
	ErrStatusAlreadySet = errors.New("job status already set")
)
