package dice

import "go.uber.org/zap"

// Roll evaluates expr with src, honoring bias.
//
// Precondition: expr came from Parse; src is non-nil.
// Postcondition: len(result.Faces) == expr.Count; each face is in [1, expr.Sides].
func Roll(expr Expression, src Source, bias Bias) RollResult {
	faces := make([]int, expr.Count)
	for i := range faces {
		switch bias {
		case Highest:
			faces[i] = expr.Sides
		case Lowest:
			faces[i] = 1
		default:
			faces[i] = src.Intn(expr.Sides) + 1
		}
	}
	return RollResult{Expression: expr.Raw, Faces: faces, Modifier: expr.Modifier, Bias: bias}
}

// Roller wraps a Source with debug logging of every roll.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewRoller creates a Roller.
//
// Precondition: src and logger must be non-nil.
func NewRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Source returns the underlying randomness provider.
func (r *Roller) Source() Source {
	return r.src
}

// Roll evaluates expr and logs the result at debug level.
func (r *Roller) Roll(expr Expression, bias Bias) RollResult {
	res := Roll(expr, r.src, bias)
	r.logger.Debug("dice roll",
		zap.String("expression", res.Expression),
		zap.Ints("faces", res.Faces),
		zap.Int("modifier", res.Modifier),
		zap.Stringer("bias", bias),
		zap.Int("total", res.Total()),
	)
	return res
}

// Chance reports success with probability percent/100.
//
// Precondition: 0 <= percent <= 100.
func (r *Roller) Chance(percent int) bool {
	ok := r.src.Intn(100) < percent
	r.logger.Debug("dice chance", zap.Int("percent", percent), zap.Bool("success", ok))
	return ok
}

// Shuffle permutes n elements with an unbiased Fisher-Yates pass.
func Shuffle(src Source, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		swap(i, src.Intn(i+1))
	}
}
