package structs

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/binary"
	"strings"

	"github.com/zond/hitres"
)

var (
	lastIDCounter uint64 = 0
	encoding             = base32.StdEncoding.WithPadding(base32.NoPadding)
)

const (
	idLen = 12
)

// NextID returns a unique id, ordered by creation time, for targets and
// sessions that were not given one.
func NextID() (string, error) {
	counter := hitres.Increment(&lastIDCounter)
	counterSize := binary.Size(counter)
	result := make([]byte, idLen)
	binary.BigEndian.PutUint64(result, counter)
	if _, err := rand.Read(result[counterSize:]); err != nil {
		return "", hitres.WithStack(err)
	}
	return strings.ToLower(encoding.EncodeToString(result)), nil
}
