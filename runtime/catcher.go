package runtime

import (
	"fmt"
	"runtime/debug"

	"github.com/freshet/freshet/stream"
)

// Protect runs fn, turning a panic into a failure of out.  It should wrap
// any loop that pushes events into a pipeline so that a panic surfaces as
// a propagated stream error instead of tearing down the process.
func Protect(out *stream.Stream, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			out.Fail(fmt.Errorf("panic: %+v\n%s", r, debug.Stack()))
		}
	}()
	fn()
}
