// Package namescheme derives a backup file's stem from a store identity
// and the shard it covers.
package namescheme

import (
	"fmt"

	"github.com/chronokv/backup/shard"
)

// Stem returns "{storeID}_{shard.ID}_{shard.Epoch}", unique across a
// single node for distinct shards and across epochs of the same shard.
func Stem(storeID string, s shard.Shard) string {
	return fmt.Sprintf("%s_%s_%d", storeID, s.ID, s.Epoch)
}
