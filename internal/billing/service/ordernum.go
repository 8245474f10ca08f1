package service

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// GenerateOrderNo builds an order number from the millisecond timestamp in
// base36 plus 4 random bytes, e.g. B1A2B3C4D5E6F1A2B3. Uniqueness is
// enforced by the (tenant_id, order_no) index; a collision surfaces as a
// duplicate-key error and the caller retries.
func GenerateOrderNo(now time.Time) string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return "B" +
		strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)) +
		strings.ToUpper(hex.EncodeToString(buf[:]))
}
