package entities

// APIError is set on every non-2xx response of the query API
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type APIBaseRes struct {
	Error *APIError `json:"error,omitempty"`
}

// Amounts are wei in base 10 unless the field name says otherwise.

type StatsResult struct {
	TotalTxCount   uint64 `json:"totalTxCount"`
	TotalAmount    string `json:"totalAmount"`
	LastTxHash     string `json:"lastTxHash,omitempty"`
	VaultBalance   string `json:"vaultBalance"`
	TotalDeposited string `json:"totalDeposited"`
	TotalReleased  string `json:"totalReleased"`
	LastEventSeq   uint64 `json:"lastEventSeq"`
}

type StatsRes struct {
	APIBaseRes
	Result *StatsResult `json:"result,omitempty"`
}

type AccountResult struct {
	Address         string   `json:"address"`
	LegacyAddresses []string `json:"legacyAddresses"`
	TxHashes        []string `json:"txHashes"`
	TotalAmount     string   `json:"totalAmount"`
	Credited        string   `json:"credited"`
}

type AccountRes struct {
	APIBaseRes
	Result *AccountResult `json:"result,omitempty"`
}

type LegacyResult struct {
	LegacyAddress string `json:"legacyAddress"`
	Address       string `json:"address"`
}

type LegacyRes struct {
	APIBaseRes
	Result *LegacyResult `json:"result,omitempty"`
}

type TxResult struct {
	TxHash        string `json:"txHash"`
	Amount        string `json:"amount"`
	LegacyAddress string `json:"legacyAddress"`
	Address       string `json:"address"`
	FeeWaived     bool   `json:"feeWaived"`
	Seq           uint64 `json:"seq"`
}

type TxRes struct {
	APIBaseRes
	Result *TxResult `json:"result,omitempty"`
}

type EventResult struct {
	Seq           uint64 `json:"seq"`
	Name          string `json:"name"`
	From          string `json:"from,omitempty"`
	LegacyAddress string `json:"legacyAddress,omitempty"`
	Address       string `json:"address,omitempty"`
	TxHash        string `json:"txHash,omitempty"`
	FeeWaived     bool   `json:"feeWaived,omitempty"`
	Amount        string `json:"amount"`
}

type EventsRes struct {
	APIBaseRes
	Result []*EventResult `json:"result"`
}

func NewStatsResult(s LedgerStats) *StatsResult {
	return &StatsResult{
		TotalTxCount:   s.TotalTxCount,
		TotalAmount:    s.TotalAmount.Dec(),
		LastTxHash:     string(s.LastTxID),
		VaultBalance:   s.VaultBalance.Dec(),
		TotalDeposited: s.TotalDeposited.Dec(),
		TotalReleased:  s.TotalReleased.Dec(),
		LastEventSeq:   s.LastEventSeq,
	}
}

func NewTxResult(r *TransferRecord) *TxResult {
	return &TxResult{
		TxHash:        string(r.TxID),
		Amount:        r.Amount.Dec(),
		LegacyAddress: string(r.LegacyAddress),
		Address:       r.Destination.Hex(),
		FeeWaived:     r.FeeWaived,
		Seq:           r.Seq,
	}
}

func NewEventResult(env *EventEnvelope) *EventResult {
	res := &EventResult{Seq: env.Seq, Name: env.Name}
	switch e := env.Event.(type) {
	case *DepositReceived:
		res.From = e.From.Hex()
		res.Amount = e.Amount.Dec()
	case *CrossChainTransfer:
		res.LegacyAddress = string(e.LegacyAddress)
		res.Address = e.Destination.Hex()
		res.TxHash = string(e.TxID)
		res.FeeWaived = e.FeeWaived
		res.Amount = e.Amount.Dec()
	}
	return res
}
