// Package common holds small helpers shared across packages.
package common

import (
	"github.com/mhsanaei/csc-portal/logger"
)

// Recover stops a panic in the calling goroutine and logs it with msg.
// Use it directly in a defer statement.
func Recover(msg string) any {
	panicErr := recover()
	if panicErr != nil {
		if msg != "" {
			logger.Error(msg, "panic:", panicErr)
		}
	}
	return panicErr
}
