// Package idgen issues unique string ids for persisted records.
package idgen

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	generator *snowflake.Node
	initOnce  sync.Once
)

// Initialize configures the generator with this instance's node id so ids
// stay unique across instances. Only the first call takes effect.
func Initialize(nodeID int64) error {
	var err error
	initOnce.Do(func() {
		generator, err = snowflake.NewNode(nodeID)
	})
	return err
}

// GenerateID returns a new unique id. An uninitialized generator falls back
// to node 1, which is only safe for a single instance.
func GenerateID() string {
	if generator == nil {
		_ = Initialize(1)
	}
	return generator.Generate().String()
}
