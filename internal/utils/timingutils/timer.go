package timingutils

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// GetDeferrableTimingLogger creates a logger function that starts a timer when called and ends the timer when the calling function ends and logs (at debug level) the time diff.
func GetDeferrableTimingLogger(message string) func() {
	start := time.Now()
	return func() {
		log.Debugf("%v: %v", message, time.Since(start))
	}
}
