package domain

import "strings"

type Method string

const (
	MethodCreditCard   Method = "CREDIT_CARD"
	MethodDebitCard    Method = "DEBIT_CARD"
	MethodWallet       Method = "WALLET"
	MethodBankTransfer Method = "BANK_TRANSFER"
	MethodCash         Method = "CASH"
	MethodFawry        Method = "FAWRY"
	MethodMeeza        Method = "MEEZA"
	MethodVodafoneCash Method = "VODAFONE_CASH"
	MethodUnknown      Method = "UNKNOWN"
)

// The provider reports the method either as a short label or as a numeric
// code. Unrecognized values map to UNKNOWN rather than failing the webhook.
var methodTable = map[string]Method{
	"card":            MethodCreditCard,
	"credit_card":     MethodCreditCard,
	"visa/mastercard": MethodCreditCard,
	"debit_card":      MethodDebitCard,
	"fawry":           MethodFawry,
	"meeza":           MethodMeeza,
	"vodafone":        MethodVodafoneCash,
	"vodafone_cash":   MethodVodafoneCash,
	"bank_transfer":   MethodBankTransfer,
	"wallet":          MethodWallet,
	"cash":            MethodCash,

	"1": MethodCreditCard,
	"2": MethodFawry,
	"3": MethodMeeza,
	"4": MethodVodafoneCash,
	"5": MethodBankTransfer,
}

func MapMethod(raw string) Method {
	if m, ok := methodTable[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return m
	}
	return MethodUnknown
}
