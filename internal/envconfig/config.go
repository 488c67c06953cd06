// Package envconfig reads process configuration from FPN_* environment
// variables.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/born-ml/fpn/internal/logutil"
)

var (
	// Set via FPN_DEBUG in the environment. 1 enables debug logging, 2 trace.
	Debug bool
	// Trace is set when FPN_DEBUG=2.
	Trace bool
	// Set via FPN_NUM_THREADS in the environment; 0 uses every CPU.
	NumThreads int
)

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"FPN_DEBUG":       {"FPN_DEBUG", Debug, "Show additional debug information (e.g. FPN_DEBUG=1, FPN_DEBUG=2 for per-layer trace)"},
		"FPN_NUM_THREADS": {"FPN_NUM_THREADS", NumThreads, "Worker goroutines per tensor op (default: number of CPUs)"},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// Clean quotes and spaces from the value
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

func init() {
	LoadConfig()
}

func LoadConfig() {
	Debug, Trace = false, false
	if debug := clean("FPN_DEBUG"); debug != "" {
		if n, err := strconv.Atoi(debug); err == nil {
			Debug = n > 0
			Trace = n > 1
		} else if d, err := strconv.ParseBool(debug); err == nil {
			Debug = d
		} else {
			Debug = true
		}
	}

	NumThreads = 0
	if threads := clean("FPN_NUM_THREADS"); threads != "" {
		n, err := strconv.Atoi(threads)
		if err != nil || n < 0 {
			slog.Error("invalid setting, ignoring", "FPN_NUM_THREADS", threads, "error", err)
		} else {
			NumThreads = n
		}
	}
}

// LogLevel maps FPN_DEBUG to a slog level.
func LogLevel() slog.Level {
	switch {
	case Trace:
		return logutil.LevelTrace
	case Debug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
