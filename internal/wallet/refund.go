package wallet

// RefundDiscountPercent is withheld from patient-initiated cancellations.
const RefundDiscountPercent = 5

type Refund struct {
	Original Money
	Discount Money
	Amount   Money
}

// ComputeRefund applies the fixed cancellation discount. The discount is
// rounded half up to the cent and Amount is always Original - Discount.
func ComputeRefund(originalPrice Money) Refund {
	discount := (originalPrice*RefundDiscountPercent + 50) / 100
	return Refund{
		Original: originalPrice,
		Discount: discount,
		Amount:   originalPrice - discount,
	}
}

// FullRefund returns the whole price, used when the clinic cancels.
func FullRefund(originalPrice Money) Refund {
	return Refund{Original: originalPrice, Amount: originalPrice}
}

// CanRefund requires the clinic to hold the full original price, not just the
// discounted refund amount.
func CanRefund(clinicBalance, originalPrice Money) bool {
	return clinicBalance >= originalPrice
}
