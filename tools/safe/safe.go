package safe

import (
	"CounselPortal/logger"
)

// Go starts a goroutine that recovers from panics so a misbehaving
// handler cannot take down the whole gateway process.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] panic recovered: %v", r)
			}
		}()
		f()
	}()
}

// Run invokes f inline with the same recover guard. Used by timer
// callbacks where spawning another goroutine is unnecessary.
func Run(f func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[safe.Run] panic recovered: %v", r)
		}
	}()
	f()
}
