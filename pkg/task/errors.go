package task

import (
	"fmt"

	"taskhub/pkg/apperr"
)

var errTaskNotFound = fmt.Errorf("task: %w", apperr.ErrNotFound)
