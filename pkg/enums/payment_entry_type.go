package enums

// PaymentEntryType separates rental payments from refundable deposits.
type PaymentEntryType string

const (
	PaymentEntryTypePayment PaymentEntryType = "payment"
	PaymentEntryTypeDeposit PaymentEntryType = "deposit"
)

var validPaymentEntryTypes = []PaymentEntryType{
	PaymentEntryTypePayment,
	PaymentEntryTypeDeposit,
}

// String implements fmt.Stringer.
func (v PaymentEntryType) String() string {
	return string(v)
}

// IsValid reports whether the value is a known PaymentEntryType.
func (v PaymentEntryType) IsValid() bool {
	for _, candidate := range validPaymentEntryTypes {
		if candidate == v {
			return true
		}
	}
	return false
}
