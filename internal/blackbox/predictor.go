package blackbox

import (
	"fmt"
	"math"
)

// predictorPlan is a predictor with its operands resolved against the header
// and schema, so that decoding never performs name lookups.
type predictorPlan struct {
	kind     Predictor
	constant int64
	sibling  int
}

// predictContext carries what a predictor may look at while one frame is
// being decoded. prev and prev2 are nil when the history group has no
// committed frame.
type predictContext struct {
	current      []int64
	prev, prev2  []int64
	lastMainTime int64
	hasMainTime  bool
	skipped      int64
}

func (c *predictContext) predict(i int, def FieldDef, plan predictorPlan, raw int64) (int64, error) {
	v := raw
	switch plan.kind {
	case PredictorZero:
	case PredictorPrevious:
		if c.prev != nil {
			v += c.prev[i]
		}
	case PredictorStraightLine:
		if c.prev != nil {
			prev2 := c.prev[i]
			if c.prev2 != nil {
				prev2 = c.prev2[i]
			}
			v += clampToDomain(2*c.prev[i]-prev2, def.Signed)
		}
	case PredictorAverage2:
		if c.prev != nil {
			prev2 := c.prev[i]
			if c.prev2 != nil {
				prev2 = c.prev2[i]
			}
			v += (c.prev[i] + prev2) >> 1
		}
	case PredictorMinThrottle, Predictor1500, PredictorVBatRef, PredictorMinMotor:
		v += plan.constant
	case PredictorMotor0:
		v += c.current[plan.sibling]
	case PredictorIncrement:
		if c.prev != nil {
			v = c.prev[i] + 1 + c.skipped
		}
	case PredictorLastMainFrameTime:
		if c.hasMainTime {
			v += c.lastMainTime
		}
	default:
		return 0, fmt.Errorf("%w: %s for field %q", ErrUnsupportedPredictor, plan.kind, def.Name)
	}
	return normalize(v, def.Signed), nil
}

func clampToDomain(v int64, signed bool) int64 {
	lo, hi := int64(0), int64(math.MaxUint32)
	if signed {
		lo, hi = math.MinInt32, math.MaxInt32
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalize wraps a predicted value into the field's 32-bit domain.
func normalize(v int64, signed bool) int64 {
	if signed {
		return int64(int32(v))
	}
	return int64(uint32(v))
}
