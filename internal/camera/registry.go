package camera

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Open a camera based on its "source spec". A source spec is a colon-separated string
// consisting of a source tag and a source path:
//    sourceSpec = sourceTag + ":" + sourcePath
// The format of the source path is defined by the registered OpenFunc. A spec
// starting with "/dev/video" is shorthand for "v4l2:<spec>".
func OpenSource(spec string) (Camera, error) {
	log.Debug("Registered camera types: %v", Registered())

	if strings.HasPrefix(spec, "/dev/video") {
		spec = "v4l2:" + spec
	}

	parts := strings.SplitN(spec, ":", 2)
	var tag, path string
	tag = parts[0]
	if len(parts) == 2 {
		path = parts[1]
	}

	registryMu.RLock()
	open, found := registry[tag]
	registryMu.RUnlock()
	if !found {
		return nil, errors.Errorf("camera type '%s' not registered", tag)
	}
	return open(path)
}

// A function used to open a specific camera type.
type OpenFunc func(path string) (Camera, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]OpenFunc{}
)

// Register a camera type, identified by its "source tag". Cameras of this type will be
// opened with the given function.
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
