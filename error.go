package hokkaido

import (
	"errors"

	"github.com/talDoFlemis/hokkaido/internal/versions"
)

//goland:noinspection GoUnusedGlobalVariable
var (
	ErrDuplicateKey = errors.New("duplicate key")
	ErrKeyNotFound  = errors.New("key not found")

	ErrInvalidModCapacity = errors.New("mod capacity must be at least 1")

	ErrUnknownVersion = versions.ErrUnknownVersion
)
