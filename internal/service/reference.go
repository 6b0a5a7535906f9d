package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	contactPrefix = "contact"
	payoutPrefix  = "payout"
	receiptPrefix = "receipt"
)

var now = time.Now

func receiptReference() string {
	return fmt.Sprintf("%s_%d", receiptPrefix, now().UnixMilli())
}

// uniqueReference is <prefix>_<epochMillis>_<8 hex> so two requests in the
// same millisecond still differ.
func uniqueReference(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", prefix, now().UnixMilli(), suffix)
}
