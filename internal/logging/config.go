package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

const envVar = "LOGLEVEL"

type tagLevel struct {
	tag   string
	level Level
}

var (
	tagLevelsMu sync.RWMutex
	tagLevels   []tagLevel
)

func init() {
	if err := Configure(os.Getenv(envVar)); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid %s: %s\n", envVar, err)
	}
}

// Configure applies comma-separated "tag=level" directives. A directive
// without "tag=" sets the default level. Loggers derived after the call pick
// up the new levels; DefaultLogger is updated in place.
func Configure(directives string) error {
	var parsed []tagLevel
	level := defaultLevel
	for _, d := range strings.Split(directives, ",") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		v := strings.SplitN(d, "=", 2)
		l, err := ParseLevel(v[len(v)-1])
		if err != nil {
			return err
		}
		if len(v) == 1 {
			level = l
		} else {
			parsed = append(parsed, tagLevel{v[0], l})
		}
	}

	tagLevelsMu.Lock()
	defaultLevel = level
	tagLevels = append(tagLevels, parsed...)
	tagLevelsMu.Unlock()

	DefaultLogger.Level = level
	return nil
}

func determineLevel(tag string, fallback Level) Level {
	tagLevelsMu.RLock()
	defer tagLevelsMu.RUnlock()

	// Later directives win.
	for i := len(tagLevels) - 1; i >= 0; i-- {
		if tagLevels[i].tag == tag {
			return tagLevels[i].level
		}
	}
	return fallback
}
