package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"
)

const codePrefix = "DS"

var codePattern = regexp.MustCompile(`^DS\d{8}$`)

var codeSpace = big.NewInt(100_000_000)

// NewCode returns a booking code of the form DS followed by 8 random digits.
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate booking code: %w", err)
	}
	return fmt.Sprintf("%s%08d", codePrefix, n.Int64()), nil
}

func IsCode(s string) bool {
	return codePattern.MatchString(s)
}

const invoicePrefix = "HD"

var invoicePattern = regexp.MustCompile(`^HD\d{12}$`)

// NewInvoiceCode returns HD, the issue day as YYYYMMDD and 4 random digits
// in 1000-9999.
func NewInvoiceCode(day time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("generate invoice code: %w", err)
	}
	return fmt.Sprintf("%s%s%d", invoicePrefix, day.Format("20060102"), 1000+n.Int64()), nil
}

func IsInvoiceCode(s string) bool {
	return invoicePattern.MatchString(s)
}
