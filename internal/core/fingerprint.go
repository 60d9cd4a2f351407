package core

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/shopspring/decimal"
)

// Fingerprint derives a deterministic content hash for a ledger row from the
// fields a human would use to recognize it. Two rows with the same
// description, amount, date and category collide on purpose; the hash is an
// audit aid, not an identity.
func Fingerprint(description string, amount decimal.Decimal, date time.Time, category string) string {
	h := sha256.New()
	h.Write([]byte(description))
	h.Write([]byte(amount.StringFixed(2)))
	h.Write([]byte(date.Format("2006-01-02")))
	h.Write([]byte(category))
	return hex.EncodeToString(h.Sum(nil))
}
