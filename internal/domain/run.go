package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RunStatus is the outcome of a deployment run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunReport aggregates the results of one deployment run.
type RunReport struct {
	RunID         string
	Network       Network
	Deployer      common.Address
	Markets       []DeployedMarket
	BalanceBefore *big.Int
	BalanceAfter  *big.Int
	GasSpent      *big.Int // BalanceBefore - BalanceAfter, in wei
	Status        RunStatus
	Error         string
	StartedAt     time.Time
	FinishedAt    time.Time
}
