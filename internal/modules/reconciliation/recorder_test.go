package reconciliation

import (
	"testing"
	"time"
)

func TestRetryDelay(t *testing.T) {
	cases := map[int]time.Duration{
		0:  time.Minute,
		1:  2 * time.Minute,
		2:  4 * time.Minute,
		5:  32 * time.Minute,
		6:  time.Hour,
		20: time.Hour,
	}
	for attempts, want := range cases {
		if got := retryDelay(attempts); got != want {
			t.Errorf("retryDelay(%d) = %s, want %s", attempts, got, want)
		}
	}
}
