package domain

import (
	"fmt"
	"math/rand"
	"time"
)

const referenceTimeLayout = "20060102150405"

// NewPaymentReference returns a human-scannable payment reference, e.g.
// PAY-20260901143015-4821. Uniqueness is enforced by the database constraint.
func NewPaymentReference() string {
	return fmt.Sprintf("PAY-%s-%04d", time.Now().Format(referenceTimeLayout), 1000+rand.Intn(9000))
}

// NewRefundReference returns a refund reference, e.g. REF-20260901143015-731.
func NewRefundReference() string {
	return fmt.Sprintf("REF-%s-%03d", time.Now().Format(referenceTimeLayout), 100+rand.Intn(900))
}
