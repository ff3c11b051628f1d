package observability

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewRunID generates a unique identifier for a trader or optimizer run.
func NewRunID() string {
	return newID("run")
}

func newID(prefix string) string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}
