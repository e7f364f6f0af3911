package core

import "errors"

var (
	ErrCollectionExists = errors.New("collection already exists")
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentFailed   = errors.New("document indexing failed")
	ErrObjectExists     = errors.New("object already exists")
	ErrUserNotFound     = errors.New("user not found")
)
