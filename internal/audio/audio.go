// Package audio provides microphone sources for the capture pipeline.
package audio

import (
	"sort"
	"strings"
	"sync"

	"github.com/lanikai/alohacapture/internal/logging"
	"github.com/lanikai/alohacapture/internal/media"
	"github.com/pkg/errors"
)

var log = logging.DefaultLogger.WithTag("audio")

var errClosed = errors.New("audio stream closed")

// Open a microphone from a source spec of the form "<tag>:<path>", e.g.
// "malgo:default" or "tone:440".
func OpenSource(spec string) (media.AudioSource, error) {
	parts := strings.SplitN(spec, ":", 2)
	tag := parts[0]
	var path string
	if len(parts) == 2 {
		path = parts[1]
	}

	registryMu.RLock()
	open, found := registry[tag]
	registryMu.RUnlock()
	if !found {
		return nil, errors.Errorf("audio source type '%s' not registered (have %v)", tag, Registered())
	}
	return open(path)
}

// A function used to open a specific audio source type.
type OpenFunc func(path string) (media.AudioSource, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]OpenFunc{}
)

// Register an audio source type under the given tag.
func Register(tag string, open OpenFunc) {
	registryMu.Lock()
	registry[tag] = open
	registryMu.Unlock()
}

// Registered returns the known source tags in sorted order.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var tags []string
	for t := range registry {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
