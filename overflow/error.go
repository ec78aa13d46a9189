package overflow

import (
	"fmt"

	"github.com/coldtree/corefs"
)

var (
	ErrBadOverflow    = corefs.ErrBadOverflow
	ErrAllocateFailed = corefs.ErrAllocateFailed
)

func errAllocateFailed[B ReadWrite](b B) error {
	if block, ok := any(b).(interface{ Error() error }); ok {
		if err := block.Error(); err != nil {
			return fmt.Errorf("%w: %w", ErrAllocateFailed, err)
		}
	}
	return ErrAllocateFailed
}
