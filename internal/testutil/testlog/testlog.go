// Package testlog configures the test logging profile and brackets each test
// with start and result lines so interleaved package output stays readable.
package testlog

import (
	"testing"
	"time"

	"github.com/danmuck/swarmctl/internal/logging"
	"github.com/danmuck/swarmctl/internal/logs"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	start := time.Now()
	logs.Infof("test=%s start", t.Name())
	t.Cleanup(func() {
		result := "pass"
		switch {
		case t.Failed():
			result = "fail"
		case t.Skipped():
			result = "skip"
		}
		logs.Infof("test=%s result=%s took=%s", t.Name(), result, time.Since(start).Round(time.Microsecond))
	})
}
