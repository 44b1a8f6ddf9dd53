package ledger

import (
	"math/rand"
	"strconv"
	"time"
)

const (
	productPrefix     = "PROD_"
	transactionPrefix = "TX_"
	txSuffixLen       = 9
)

// IDGenerator mints product and transaction identifiers.
type IDGenerator interface {
	ProductID(now time.Time) string
	TransactionID() string
}

// RandomIDs derives product ids from the clock and transaction ids from
// math/rand. Neither is checked for collisions.
type RandomIDs struct{}

// ProductID returns "PROD_" followed by the epoch milliseconds of now.
func (RandomIDs) ProductID(now time.Time) string {
	return productPrefix + strconv.FormatInt(now.UnixMilli(), 10)
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// TransactionID returns "TX_" followed by random base36 characters.
func (RandomIDs) TransactionID() string {
	b := make([]byte, txSuffixLen)
	for i := range b {
		b[i] = base36[rand.Intn(len(base36))]
	}
	return transactionPrefix + string(b)
}
