package types

type TxType string

const (
	TxBuy        TxType = "buy"
	TxSell       TxType = "sell"
	TxDeposit    TxType = "deposit"
	TxWithdraw   TxType = "withdraw"
	TxAdd        TxType = "add"
	TxRemove     TxType = "remove"
	TxAllocation TxType = "allocation"
	TxRename     TxType = "rename"
)

// ExternalFlow reports whether the type moves money across the portfolio
// boundary. Only deposits and withdrawals count toward a day's net flow.
func (t TxType) ExternalFlow() bool {
	return t == TxDeposit || t == TxWithdraw
}

var ConvertTxType = map[string]TxType{
	"buy":        TxBuy,
	"sell":       TxSell,
	"deposit":    TxDeposit,
	"withdraw":   TxWithdraw,
	"add":        TxAdd,
	"remove":     TxRemove,
	"allocation": TxAllocation,
	"rename":     TxRename,
}
