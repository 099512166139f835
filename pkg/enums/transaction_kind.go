package enums

import "fmt"

// TransactionKind maps to the transaction_kind_enum enum in Postgres.
type TransactionKind string

const (
	TransactionKindPurchase        TransactionKind = "purchase"
	TransactionKindBonus           TransactionKind = "bonus"
	TransactionKindUsage           TransactionKind = "usage"
	TransactionKindRefund          TransactionKind = "refund"
	TransactionKindAdminAdjustment TransactionKind = "admin_adjustment"
)

var validTransactionKinds = []TransactionKind{
	TransactionKindPurchase,
	TransactionKindBonus,
	TransactionKindUsage,
	TransactionKindRefund,
	TransactionKindAdminAdjustment,
}

// IsValid reports whether the value matches the canonical transaction kind enum.
func (k TransactionKind) IsValid() bool {
	for _, candidate := range validTransactionKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// IsCredit reports whether the kind may be used with a ledger credit.
func (k TransactionKind) IsCredit() bool {
	switch k {
	case TransactionKindPurchase, TransactionKindBonus, TransactionKindRefund, TransactionKindAdminAdjustment:
		return true
	}
	return false
}

// ParseTransactionKind converts raw input into TransactionKind.
func ParseTransactionKind(value string) (TransactionKind, error) {
	for _, candidate := range validTransactionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction kind %q", value)
}
