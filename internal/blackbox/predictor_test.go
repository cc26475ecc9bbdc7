package blackbox

import (
	"errors"
	"math"
	"testing"
)

func TestPredictors(t *testing.T) {
	signed := FieldDef{Name: "f", Signed: true}
	unsigned := FieldDef{Name: "f"}
	tests := []struct {
		name string
		def  FieldDef
		plan predictorPlan
		ctx  predictContext
		raw  int64
		want int64
	}{
		{name: "zero", def: signed, plan: predictorPlan{kind: PredictorZero}, raw: -4, want: -4},
		{name: "previous zero delta", def: signed, plan: predictorPlan{kind: PredictorPrevious}, ctx: predictContext{prev: []int64{42}, prev2: []int64{40}}, raw: 0, want: 42},
		{name: "previous without history", def: signed, plan: predictorPlan{kind: PredictorPrevious}, raw: 9, want: 9},
		{name: "straight line", def: signed, plan: predictorPlan{kind: PredictorStraightLine}, ctx: predictContext{prev: []int64{20}, prev2: []int64{10}}, raw: 0, want: 30},
		{name: "straight line clamps signed", def: signed, plan: predictorPlan{kind: PredictorStraightLine}, ctx: predictContext{prev: []int64{math.MaxInt32}, prev2: []int64{0}}, raw: 0, want: math.MaxInt32},
		{name: "straight line clamps unsigned", def: unsigned, plan: predictorPlan{kind: PredictorStraightLine}, ctx: predictContext{prev: []int64{5}, prev2: []int64{100}}, raw: 7, want: 7},
		{name: "average floors", def: signed, plan: predictorPlan{kind: PredictorAverage2}, ctx: predictContext{prev: []int64{11}, prev2: []int64{10}}, raw: 0, want: 10},
		{name: "average floors negative", def: signed, plan: predictorPlan{kind: PredictorAverage2}, ctx: predictContext{prev: []int64{-11}, prev2: []int64{-10}}, raw: 0, want: -11},
		{name: "minthrottle", def: unsigned, plan: predictorPlan{kind: PredictorMinThrottle, constant: 1070}, raw: 30, want: 1100},
		{name: "constant 1500", def: signed, plan: predictorPlan{kind: Predictor1500, constant: 1500}, raw: -20, want: 1480},
		{name: "motor0 sibling", def: unsigned, plan: predictorPlan{kind: PredictorMotor0, sibling: 0}, ctx: predictContext{current: []int64{1200, 0}}, raw: -3, want: 1197},
		{name: "increment", def: unsigned, plan: predictorPlan{kind: PredictorIncrement}, ctx: predictContext{prev: []int64{99}, prev2: []int64{98}}, raw: 12345, want: 100},
		{name: "increment with skipped frames", def: unsigned, plan: predictorPlan{kind: PredictorIncrement}, ctx: predictContext{prev: []int64{99}, skipped: 1}, raw: 0, want: 101},
		{name: "increment without history", def: unsigned, plan: predictorPlan{kind: PredictorIncrement}, raw: 100, want: 100},
		{name: "last main frame time", def: unsigned, plan: predictorPlan{kind: PredictorLastMainFrameTime}, ctx: predictContext{lastMainTime: 5000, hasMainTime: true}, raw: 37, want: 5037},
		{name: "unsigned wraps", def: unsigned, plan: predictorPlan{kind: PredictorPrevious}, ctx: predictContext{prev: []int64{0}}, raw: -1, want: math.MaxUint32},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := tc.ctx
			i := 0
			if tc.plan.kind == PredictorMotor0 {
				i = 1
			}
			got, err := ctx.predict(i, tc.def, tc.plan, tc.raw)
			if err != nil {
				t.Fatalf("predict: %v", err)
			}
			if got != tc.want {
				t.Fatalf("predict = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestHomeCoordPredictorUnsupported(t *testing.T) {
	var ctx predictContext
	_, err := ctx.predict(0, FieldDef{Name: "GPS_coord[0]", Signed: true}, predictorPlan{kind: PredictorHomeCoord}, 5)
	if !errors.Is(err, ErrUnsupportedPredictor) {
		t.Fatalf("expected ErrUnsupportedPredictor, got %v", err)
	}
}
