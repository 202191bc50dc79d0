package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// SizingRequest carries the inputs for CalculatePositionSize.
type SizingRequest struct {
	Balance    float64
	Price      float64
	StopPrice  float64
	Confidence float64

	// StructuralStop, when set, replaces StopPrice. Its distance from Price
	// is capped at Policy.MaxStructuralStopPct.
	StructuralStop *float64
}

// Sizing is the result of CalculatePositionSize. The trailing fields show how
// the quantity was reached.
type Sizing struct {
	Quantity      int
	Investment    float64
	RiskAmount    float64
	PositionRatio float64
	MaxLoss       float64
	StopPrice     float64

	RiskQty int
	CapQty  int
	Scale   float64
}

// floorQty absorbs float noise such as 9.999999999 before flooring.
func floorQty(x float64) int {
	if x <= 0 || math.IsNaN(x) {
		return 0
	}
	if math.IsInf(x, 1) {
		return math.MaxInt32
	}
	return int(math.Floor(x + 1e-9))
}

// CalculatePositionSize combines the risk-per-trade budget, the position
// caps, confidence, the weekly loss adjustment and the loss-streak multiplier
// into a share quantity. Scaling never reduces an admissible trade to zero;
// only the caps can.
func (g *Gate) CalculatePositionSize(ctx context.Context, req SizingRequest) (Sizing, error) {
	if req.Balance <= 0 {
		return Sizing{}, fmt.Errorf("risk: balance must be positive, got %.2f", req.Balance)
	}
	if req.Price <= 0 {
		return Sizing{}, fmt.Errorf("risk: price must be positive, got %.2f", req.Price)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	g.rolloverLocked(now, 0)
	g.expireCooldownLocked(ctx, now)

	stop := req.StopPrice
	if req.StructuralStop != nil {
		stop = *req.StructuralStop
		maxDist := req.Price * g.policy.MaxStructuralStopPct
		if math.Abs(req.Price-stop) > maxDist {
			if stop < req.Price {
				stop = req.Price - maxDist
			} else {
				stop = req.Price + maxDist
			}
		}
	}
	dist := math.Abs(req.Price - stop)
	if dist == 0 {
		return Sizing{}, errors.New("risk: stop price equals entry price")
	}

	riskBudget := req.Balance * g.policy.RiskFraction
	riskQty := floorQty(riskBudget / dist)
	capQty := floorQty(math.Min(req.Balance*g.policy.MaxPositionFraction, g.policy.HardPositionCap) / req.Price)

	conf := req.Confidence
	if conf < g.policy.MinConfidence {
		conf = g.policy.MinConfidence
	}
	if conf > 1 {
		conf = 1
	}
	scale := conf * g.weeklyAdjustmentLocked() * g.streak.SizeMultiplier

	qty := floorQty(float64(min(riskQty, capQty)) * scale)
	if qty == 0 && capQty >= 1 {
		qty = 1
	}

	investment := Notional(req.Price, qty)
	s := Sizing{
		Quantity:      qty,
		Investment:    investment,
		RiskAmount:    riskBudget,
		PositionRatio: investment / req.Balance,
		MaxLoss:       dist * float64(qty),
		StopPrice:     stop,
		RiskQty:       riskQty,
		CapQty:        capQty,
		Scale:         scale,
	}

	g.log.DebugContext(ctx, "risk: position sized",
		slog.Int("quantity", qty),
		slog.Int("risk_qty", riskQty),
		slog.Int("cap_qty", capQty),
		slog.Float64("scale", scale),
		slog.Float64("stop", stop),
	)
	return s, nil
}
