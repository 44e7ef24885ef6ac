package app

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newReceiptToken builds the externally presentable transaction token: a
// millisecond timestamp prefix for rough ordering plus 128 bits of randomness.
// A unique index on transaction_receipts.token backs this up.
func newReceiptToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// Fall back to a UUID rather than panic inside the money path.
		return fmt.Sprintf("txn_%d_%s", time.Now().UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", ""))
	}
	return fmt.Sprintf("txn_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}
