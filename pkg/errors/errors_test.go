package errors

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewRefitError(t *testing.T) {
	cause := NewRankDeficiencyError("glm.Fit", 5, 6, []string{"light[sunny]"})

	tests := []struct {
		name    string
		fold    int
		indices []int
		wantMsg string
		wantIdx int
	}{
		{
			name:    "single held-out row",
			fold:    3,
			indices: []int{3},
			wantMsg: "glmcv: refit failed for held-out index 3: ",
			wantIdx: 3,
		},
		{
			name:    "held-out block",
			fold:    1,
			indices: []int{4, 5, 6},
			wantMsg: "glmcv: refit failed for fold 1 (held-out indices [4 5 6]): ",
			wantIdx: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRefitError(tt.fold, tt.indices, cause)

			if !strings.HasPrefix(err.Error(), tt.wantMsg) {
				t.Errorf("Error() = %q, want prefix %q", err.Error(), tt.wantMsg)
			}

			var refitErr *RefitError
			if !As(err, &refitErr) {
				t.Fatal("Error should be castable to *RefitError")
			}
			if refitErr.Index != tt.wantIdx {
				t.Errorf("Index = %d, want %d", refitErr.Index, tt.wantIdx)
			}

			// 原因のRankDeficiencyErrorまで辿れること
			var rankErr *RankDeficiencyError
			if !As(err, &rankErr) {
				t.Error("RefitError should unwrap to *RankDeficiencyError")
			}

			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}
		})
	}
}

func TestNewRefitErrorCopiesIndices(t *testing.T) {
	indices := []int{7, 8}
	err := NewRefitError(2, indices, New("boom"))
	indices[0] = 99

	var refitErr *RefitError
	if !As(err, &refitErr) {
		t.Fatal("Error should be castable to *RefitError")
	}
	if refitErr.Indices[0] != 7 {
		t.Errorf("RefitError must not alias the caller's slice, got %v", refitErr.Indices)
	}
}

func TestNewCostFunctionError(t *testing.T) {
	err := NewCostFunctionError(4, 0.25, math.NaN(), ErrNonFinite)

	want := "glmcv: cost function failed at index 4 (observed=0.25, predicted=NaN): non-finite value"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var costErr *CostFunctionError
	if !As(err, &costErr) {
		t.Fatal("Error should be castable to *CostFunctionError")
	}
	if costErr.Index != 4 {
		t.Errorf("Index = %d, want 4", costErr.Index)
	}
	if !Is(err, ErrNonFinite) {
		t.Error("CostFunctionError should unwrap to ErrNonFinite")
	}
}

func TestNewDataError(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		reason  string
		wantMsg string
	}{
		{
			name:    "with field",
			field:   "gfrac",
			reason:  "value 1.5 outside [0,1] at row 2",
			wantMsg: `glmcv: cv.Evaluate: field "gfrac": value 1.5 outside [0,1] at row 2`,
		},
		{
			name:    "without field",
			reason:  "need at least 2 observations, got 1",
			wantMsg: "glmcv: cv.Evaluate: need at least 2 observations, got 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDataError("cv.Evaluate", tt.field, tt.reason)
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}
			var dataErr *DataError
			if !As(err, &dataErr) {
				t.Error("Error should be castable to *DataError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 7, 1)

	want := "glmcv: Predict: dimension mismatch on axis 1 (features). Expected 10, got 7"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewConvergenceError(t *testing.T) {
	err := NewConvergenceError("IRLS", 25, 12.5, "deviance did not stabilise")

	var convErr *ConvergenceError
	if !As(err, &convErr) {
		t.Fatal("Error should be castable to *ConvergenceError")
	}
	if convErr.Iterations != 25 {
		t.Errorf("Iterations = %d, want 25", convErr.Iterations)
	}
	if !strings.Contains(err.Error(), "IRLS did not converge after 25 iterations") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestMarshalZerologObject(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	refitErr := &RefitError{Index: 2, Indices: []int{2}, Fold: 2, Err: New("singular")}
	logger.Error().EmbedObject(refitErr).Msg("fold failed")

	out := buf.String()
	for _, want := range []string{`"index":2`, `"type":"RefitError"`, `"cause":"singular"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %s does not contain %s", out, want)
		}
	}
}

func TestFoldErrorsIndices(t *testing.T) {
	f := FoldErrors{9: New("a"), 1: New("b"), 4: New("c")}
	got := f.Indices()
	want := []int{1, 4, 9}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Indices() = %v, want %v", got, want)
	}
}

func TestWarnRoutesToZerologFunc(t *testing.T) {
	var got error
	SetZerologWarnFunc(func(w error) { got = w })
	defer SetZerologWarnFunc(nil)

	w := NewPartialResultWarning([]int{0, 3}, 23)
	Warn(w)

	if got != w {
		t.Errorf("Warn did not reach the zerolog function, got %v", got)
	}
}

func TestCheckNumericalStability(t *testing.T) {
	if err := CheckNumericalStability("irls_update", []float64{1, 2, 3}, 0); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := CheckNumericalStability("irls_update", []float64{1, math.Inf(1)}, 3)
	var numErr *NumericalInstabilityError
	if !As(err, &numErr) {
		t.Fatalf("expected NumericalInstabilityError, got %v", err)
	}
	if numErr.Iteration != 3 {
		t.Errorf("Iteration = %d, want 3", numErr.Iteration)
	}
	if CheckScalar("deviance", math.NaN(), 1) == nil {
		t.Error("CheckScalar should reject NaN")
	}
}
