package analytics

import (
	"context"
	"fmt"
	"math"
)

// olsFit holds the coefficients of the fixed-form linear model
// watchRate ~ courseOrder + minIntoVideo.
type olsFit struct {
	Intercept   float64
	CourseOrder float64
	MinInto     float64
}

// predict returns the fitted watch rate for one segment row.
func (f olsFit) predict(courseOrder, minInto float64) float64 {
	return f.Intercept + f.CourseOrder*courseOrder + f.MinInto*minInto
}

// classify fits the residual model over the completed, normalized table and
// labels the top and bottom K segments. Residuals stay attached to their row
// index throughout, so no positional re-join is needed. A segment that would
// qualify for both labels is flagged high: the positive check runs first.
func (p *Pipeline) classify(ctx context.Context, rows []SegmentStat) error {
	for i := range rows {
		rows[i].HighLow = LabelNormal
	}
	if p.cfg.TopSelection <= 0 {
		return nil
	}
	if len(rows) < MinRowsForClassification {
		p.logger.InfoContext(ctx, "too few segment rows to fit residual model",
			"rows", len(rows),
		)
		return nil
	}

	x1 := make([]float64, len(rows))
	x2 := make([]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		x1[i] = float64(r.CourseOrder)
		x2[i] = r.MinIntoVideo
		y[i] = r.WatchRate
	}

	fit, err := fitOLS(x1, x2, y)
	if err != nil {
		// A degenerate design matrix (a single video, say) has no usable
		// residual structure; the table stays unlabeled instead of failing
		// the whole recomputation.
		p.logger.WarnContext(ctx, "residual model fit failed, leaving segments unlabeled",
			"error", err,
		)
		return nil
	}

	residuals := make([]float64, len(rows))
	negated := make([]float64, len(rows))
	for i := range rows {
		residuals[i] = y[i] - fit.predict(x1[i], x2[i])
		negated[i] = -residuals[i]
	}

	negativeRank := DenseRank(residuals)
	positiveRank := DenseRank(negated)

	k := p.cfg.TopSelection
	high, low := 0, 0
	for i := range rows {
		switch {
		case positiveRank[i] <= k:
			rows[i].HighLow = LabelHigh
			high++
		case negativeRank[i] <= k:
			rows[i].HighLow = LabelLow
			low++
		}
	}

	p.logger.DebugContext(ctx, "classified segment watch rates",
		"high", high,
		"low", low,
		"top_selection", k,
	)

	return nil
}

// fitOLS solves the normal equations for an ordinary least squares fit with
// an intercept and two regressors. The 3x3 system is small enough to solve
// directly with Gaussian elimination; the corpus carries no linear algebra
// dependency and the model form is fixed, so a general solver buys nothing.
func fitOLS(x1, x2, y []float64) (olsFit, error) {
	n := float64(len(y))
	if len(x1) != len(y) || len(x2) != len(y) {
		return olsFit{}, fmt.Errorf("mismatched regressor lengths: %d, %d, %d", len(x1), len(x2), len(y))
	}

	var s1, s2, s11, s22, s12, sy, s1y, s2y float64
	for i := range y {
		s1 += x1[i]
		s2 += x2[i]
		s11 += x1[i] * x1[i]
		s22 += x2[i] * x2[i]
		s12 += x1[i] * x2[i]
		sy += y[i]
		s1y += x1[i] * y[i]
		s2y += x2[i] * y[i]
	}

	// X'X beta = X'y with columns [1, x1, x2].
	m := [3][4]float64{
		{n, s1, s2, sy},
		{s1, s11, s12, s1y},
		{s2, s12, s22, s2y},
	}

	for col := 0; col < 3; col++ {
		pivot := col
		for r := col + 1; r < 3; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		m[col], m[pivot] = m[pivot], m[col]

		if math.Abs(m[col][col]) < 1e-12 {
			return olsFit{}, fmt.Errorf("singular design matrix")
		}

		for r := 0; r < 3; r++ {
			if r == col {
				continue
			}
			factor := m[r][col] / m[col][col]
			for c := col; c < 4; c++ {
				m[r][c] -= factor * m[col][c]
			}
		}
	}

	fit := olsFit{
		Intercept:   m[0][3] / m[0][0],
		CourseOrder: m[1][3] / m[1][1],
		MinInto:     m[2][3] / m[2][2],
	}

	if math.IsNaN(fit.Intercept) || math.IsNaN(fit.CourseOrder) || math.IsNaN(fit.MinInto) {
		return olsFit{}, fmt.Errorf("non-finite coefficients")
	}

	return fit, nil
}
