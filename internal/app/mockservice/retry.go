package mockservice

import (
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
)

// retryFor calls do every delay until it succeeds or duration has elapsed. do is given the
// time left. It reports whether do succeeded.
func retryFor(do func(time.Duration) bool, delay, duration time.Duration) bool {
	start := time.Now()
	err := retry.Do(func() error {
		timeLeft := duration - time.Since(start)
		if !do(timeLeft) {
			return errors.New("retry")
		}
		return nil
	},
		retry.Attempts(uint(duration/delay)+2),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return err != nil && time.Since(start) <= duration
		}))
	return err == nil
}
