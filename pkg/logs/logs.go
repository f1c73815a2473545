// Package logs configures klog for the CLI. Messages at V(0) are operational,
// V(2) traces the per-request protocol steps. Key material and payload bytes
// are never logged at any verbosity.
package logs

import (
	"flag"

	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
)

var klogFlags = flag.NewFlagSet("klog", flag.PanicOnError)

func init() {
	klog.InitFlags(klogFlags)
}

// AddFlags exposes the klog flags (notably -v) on the given pflag set.
func AddFlags(fs *pflag.FlagSet) {
	fs.AddGoFlagSet(klogFlags)
}

// Initialize finalises logging setup. Call once, before any command runs.
func Initialize() {
	// A CLI wants stderr, never log files.
	if f := klogFlags.Lookup("logtostderr"); f != nil {
		_ = f.Value.Set("true")
	}
}

// Flush drains any buffered log output. Call on process exit.
func Flush() {
	klog.Flush()
}
