package project

import (
	"fmt"

	"taskhub/pkg/apperr"
)

var errNoActiveMember = fmt.Errorf("no active membership: %w", apperr.ErrNotFound)
