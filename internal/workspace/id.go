package workspace

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

const (
	idPrefix     = "ws_"
	suffixLen    = 9
	suffixDigits = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var suffixBase = big.NewInt(int64(len(suffixDigits)))

// NewID returns ws_<unix millis>_<9 base-36 chars>.
func NewID(now time.Time) (string, error) {
	suffix := make([]byte, suffixLen)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, suffixBase)
		if err != nil {
			return "", err
		}
		suffix[i] = suffixDigits[n.Int64()]
	}
	return idPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(suffix), nil
}
