package shortener

import "errors"

// Causes wrapped in errx errors by the repositories and the service.
var (
	ErrInvalidURL              = errors.New("invalid URL format")
	ErrInvalidExpiry           = errors.New("invalid expiry date")
	ErrMissingOwner            = errors.New("owner id is required")
	ErrCodeTaken               = errors.New("short code already exists")
	ErrReservedCode            = errors.New("short code is reserved")
	ErrCodeGenerationExhausted = errors.New("could not generate a unique short code")
	ErrUploadFailed            = errors.New("file upload failed")
	ErrLinkNotFound            = errors.New("short code not found")
	ErrExpired                 = errors.New("link has expired")
	ErrNotOwner                = errors.New("link belongs to another owner")
	ErrUnknownBlob             = errors.New("attached file not found")
	ErrBlobNotOwned            = errors.New("attached file belongs to another user")
	ErrBlobURLMismatch         = errors.New("original URL does not point at the attached file")
	ErrNoBlobStore             = errors.New("file storage is not configured")
)
