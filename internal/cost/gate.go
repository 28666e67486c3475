package cost

import (
	"fmt"

	"github.com/hemantobora/proxygen/internal/models"
)

// Outcome is the gate's verdict on a proposed deployment.
type Outcome int

const (
	// Proceed means the estimate is within limits.
	Proceed Outcome = iota
	// Warn means no budget was given and the estimate crossed the
	// provider's threshold; the caller should ask for confirmation.
	Warn
	// Abort means the estimate exceeds the caller's budget.
	Abort
)

// Decision carries the gate's verdict and the estimate behind it.
type Decision struct {
	Outcome  Outcome
	Estimate Estimate
	Reason   string
}

// String renders the decision for CLI output.
func (d Decision) String() string {
	switch d.Outcome {
	case Proceed:
		return fmt.Sprintf("proceed ($%.2f/month)", d.Estimate.Monthly)
	case Warn:
		return fmt.Sprintf("warn: %s ($%.2f/month)", d.Reason, d.Estimate.Monthly)
	default:
		return "abort: " + d.Reason
	}
}

// Gate evaluates deployment cost against budgets and warn thresholds. It
// holds no mutable state and performs no I/O beyond the static price table.
type Gate struct {
	// warnThresholds maps provider to the monthly USD estimate above which
	// Evaluate warns when no budget was supplied.
	warnThresholds map[string]float64
}

// NewGate creates a gate with the given per-provider warn thresholds.
func NewGate(warnThresholds map[string]float64) *Gate {
	return &Gate{warnThresholds: warnThresholds}
}

// Evaluate estimates the monthly cost of the proposed deployment. budget <= 0
// means no budget: the provider's warn threshold applies instead, producing
// Warn rather than Abort so the caller can prompt for confirmation.
func (g *Gate) Evaluate(provider models.Provider, region, instanceType string, budget float64) Decision {
	est := EstimateMonthly(provider, region, instanceType)

	if budget > 0 && est.Monthly > budget {
		return Decision{
			Outcome:  Abort,
			Estimate: est,
			Reason: (&models.BudgetExceededError{
				Provider:     provider,
				InstanceType: instanceType,
				Estimated:    est.Monthly,
				Budget:       budget,
			}).Error(),
		}
	}

	if budget <= 0 {
		if threshold, ok := g.warnThresholds[string(provider)]; ok && est.Monthly > threshold {
			return Decision{
				Outcome:  Warn,
				Estimate: est,
				Reason:   fmt.Sprintf("estimated monthly cost $%.2f exceeds the $%.2f threshold for %s", est.Monthly, threshold, provider),
			}
		}
	}

	if !est.KnownType {
		return Decision{
			Outcome:  Warn,
			Estimate: est,
			Reason:   fmt.Sprintf("no price listed for instance type %q, estimate uses the cheapest %s type", instanceType, provider),
		}
	}

	return Decision{Outcome: Proceed, Estimate: est}
}
