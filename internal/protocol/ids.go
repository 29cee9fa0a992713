package protocol

import (
	"fmt"
	"sync/atomic"
	"time"
)

var idCounter atomic.Uint64

// newID returns prefix-<unix-ms>-<n>. The counter is process wide, so two
// ids issued by the same process never collide even within one millisecond.
func newID(prefix string) string {
	n := idCounter.Add(1)
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixMilli(), n)
}

func NewCommandID() string { return newID("cmd") }

func NewEventID() string { return newID("evt") }

// NewErrorID is used for failures that have no command to correlate against.
func NewErrorID() string { return newID("err") }
