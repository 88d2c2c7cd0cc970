package manifest

import "errors"

var (
	ErrKindRequired            = errors.New("manifest kind is required")
	ErrUnknownKind             = errors.New("unknown manifest kind")
	ErrMissingIdentifierColumn = errors.New("manifest header is missing the identifier column")
	ErrUnsupportedFormat       = errors.New("unsupported manifest file format")
	ErrEmptyManifest           = errors.New("manifest has no rows")
	ErrInvalidShape            = errors.New("invalid manifest shape")
	ErrInvalidRowFilter        = errors.New("invalid row filter")
	ErrInvalidOrphanPolicy     = errors.New("invalid orphan policy")
)
