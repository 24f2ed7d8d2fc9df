package services

import "errors"

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrFileMissing      = errors.New("PDF file not found")
	ErrNotPDF           = errors.New("only PDF files are allowed")
	ErrFileTooLarge     = errors.New("file size exceeds upload limit")
	ErrEmptyFile        = errors.New("uploaded file is empty")
	ErrInvalidPDF       = errors.New("file could not be read as a PDF")
	ErrNoText           = errors.New("no extractable text in document")
	ErrIndexNotFound    = errors.New("document has not been indexed")
	ErrIndexStale       = errors.New("document index was built with a different embedding model")
	ErrEmptyQuestion    = errors.New("question must not be empty")
)
