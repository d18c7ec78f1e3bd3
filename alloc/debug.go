package alloc

import (
	"fmt"
	"os"
)

// Runtime debug flag for allocation logging - controlled by MEMKIT_LOG_ALLOC env var.
var logAlloc = os.Getenv("MEMKIT_LOG_ALLOC") != ""

// debugLogf prints debug messages if logAlloc is enabled.
func debugLogf(format string, args ...any) {
	if logAlloc {
		fmt.Fprintf(os.Stderr, "[ALLOC] "+format+"\n", args...)
	}
}
