package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"path"
	"strings"
	"time"

	"github.com/alanyoungcy/optionsdeployer/internal/domain"
	"github.com/alanyoungcy/optionsdeployer/internal/params"
)

// multipartThreshold is the payload size above which reports are uploaded
// in parts.
const multipartThreshold = 8 << 20

// FormatEther renders a wei amount in ether with four decimals. A nil amount
// renders as "?".
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "?"
	}
	return params.FromFixedPoint(wei, 18).StringFixed(4)
}

// MarketLine describes one deployed market on a single line.
func MarketLine(m domain.DeployedMarket) string {
	return fmt.Sprintf("%s %s (caps in %s) tx %s",
		domain.KindOf(m.IsPut), m.Address.Hex(), m.CapSymbol, m.TxHash.Hex())
}

// Summary renders a run report for operators.
func Summary(r domain.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s on %s by %s: %s\n", r.RunID, r.Network, r.Deployer.Hex(), r.Status)
	for _, m := range r.Markets {
		b.WriteString("- ")
		b.WriteString(MarketLine(m))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "gas spent: %s ETH", FormatEther(r.GasSpent))
	if r.Error != "" {
		fmt.Fprintf(&b, "\nerror: %s", r.Error)
	}
	return b.String()
}

type marketJSON struct {
	Address   string `json:"address"`
	Kind      string `json:"kind"`
	CapSymbol string `json:"cap_symbol"`
	TxHash    string `json:"tx_hash"`
	Index     uint64 `json:"index"`
}

type reportJSON struct {
	RunID         string       `json:"run_id"`
	Network       string       `json:"network"`
	Deployer      string       `json:"deployer"`
	Status        string       `json:"status"`
	Error         string       `json:"error,omitempty"`
	Markets       []marketJSON `json:"markets"`
	BalanceBefore string       `json:"balance_before_wei"`
	BalanceAfter  string       `json:"balance_after_wei"`
	GasSpent      string       `json:"gas_spent_wei"`
	GasSpentEther string       `json:"gas_spent_eth"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    time.Time    `json:"finished_at"`
}

// MarshalReport encodes a run report as indented JSON.
func MarshalReport(r domain.RunReport) ([]byte, error) {
	out := reportJSON{
		RunID:         r.RunID,
		Network:       string(r.Network),
		Deployer:      r.Deployer.Hex(),
		Status:        string(r.Status),
		Error:         r.Error,
		Markets:       make([]marketJSON, 0, len(r.Markets)),
		BalanceBefore: bigString(r.BalanceBefore),
		BalanceAfter:  bigString(r.BalanceAfter),
		GasSpent:      bigString(r.GasSpent),
		GasSpentEther: FormatEther(r.GasSpent),
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
	}
	for _, m := range r.Markets {
		out.Markets = append(out.Markets, marketJSON{
			Address:   m.Address.Hex(),
			Kind:      domain.KindOf(m.IsPut),
			CapSymbol: string(m.CapSymbol),
			TxHash:    m.TxHash.Hex(),
			Index:     m.Index,
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

// archiveKey places reports under prefix/network/yyyy/mm/dd/run_id.json.
func archiveKey(prefix string, r domain.RunReport) string {
	return path.Join(prefix, string(r.Network), r.StartedAt.Format("2006/01/02"), r.RunID+".json")
}

func (s *DeploymentService) archive(ctx context.Context, r domain.RunReport) (string, error) {
	data, err := MarshalReport(r)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	key := archiveKey(s.opts.ArchivePrefix, r)
	if len(data) > multipartThreshold {
		err = s.deps.Archive.PutMultipart(ctx, key, bytes.NewReader(data), multipartThreshold)
	} else {
		err = s.deps.Archive.Put(ctx, key, bytes.NewReader(data), "application/json")
	}
	if err != nil {
		return "", err
	}
	return key, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
