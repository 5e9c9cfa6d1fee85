// Package cleaning turns the loaded patient table into an outlier- and
// missing-value-free table through an explicit, ordered list of stages.
package cleaning

import (
	"time"

	"github.com/YuminosukeSato/heartrisk/core/model"
	"github.com/YuminosukeSato/heartrisk/dataset"
	"github.com/YuminosukeSato/heartrisk/pkg/errors"
	"github.com/YuminosukeSato/heartrisk/pkg/log"
	"github.com/YuminosukeSato/heartrisk/preprocessing"
)

// Output column names produced by the default stages.
const (
	ColTrtbpsWinsorize      = "trtbps_winsorize"
	ColOldpeakWinsorize     = "oldpeak_winsorize"
	ColOldpeakWinsorizeSqrt = "oldpeak_winsorize_sqrt"
)

// Normalizer applies its stages in order.
type Normalizer struct {
	state  *model.StateManager
	stages []Stage
	logger log.Logger

	thallSentinel float64
	thallFill     float64
	dropColumns   []string
	trtbpsCutoff  float64
	oldpeakCutoff float64
	fenceMode     preprocessing.FenceMode
	fenceK        float64
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithThallFill sets the value imputed for a missing thall.
func WithThallFill(v float64) Option {
	return func(n *Normalizer) { n.thallFill = v }
}

// WithDropColumns sets the columns removed as uninformative.
func WithDropColumns(cols ...string) Option {
	return func(n *Normalizer) { n.dropColumns = cols }
}

// WithCutoffs sets the trtbps and oldpeak winsorization cutoffs.
func WithCutoffs(trtbps, oldpeak float64) Option {
	return func(n *Normalizer) {
		n.trtbpsCutoff = trtbps
		n.oldpeakCutoff = oldpeak
	}
}

// WithFence sets the thalachh outlier fence mode and constant.
func WithFence(mode preprocessing.FenceMode, k float64) Option {
	return func(n *Normalizer) {
		n.fenceMode = mode
		n.fenceK = k
	}
}

// WithLogger overrides the stage logger.
func WithLogger(l log.Logger) Option {
	return func(n *Normalizer) { n.logger = l }
}

// NewNormalizer builds the default seven-stage normalizer:
//
//	replace_sentinel, impute, drop_low_correlation, winsorize_trtbps,
//	remove_thalachh_outliers, winsorize_oldpeak, sqrt_oldpeak
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		state:         model.NewStateManager(),
		logger:        log.GetLoggerWithName("cleaning"),
		thallSentinel: 0,
		thallFill:     2,
		dropColumns:   []string{dataset.ColChol, dataset.ColFbs, dataset.ColRestECG},
		trtbpsCutoff:  165,
		oldpeakCutoff: 4.0,
		fenceMode:     preprocessing.FenceAdditive,
		fenceK:        1.5,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.stages = []Stage{
		&SentinelStage{Column: dataset.ColThall, Sentinel: n.thallSentinel},
		&ImputeStage{Column: dataset.ColThall, Value: n.thallFill},
		&DropStage{Columns: n.dropColumns},
		&WinsorizeStage{StageName: "winsorize_trtbps", Column: dataset.ColTrtbps, Output: ColTrtbpsWinsorize, Cutoff: n.trtbpsCutoff},
		&FenceStage{Column: dataset.ColThalachh, Mode: n.fenceMode, K: n.fenceK},
		&WinsorizeStage{StageName: "winsorize_oldpeak", Column: dataset.ColOldpeak, Output: ColOldpeakWinsorize, Cutoff: n.oldpeakCutoff},
		&SqrtStage{StageName: "sqrt_oldpeak", Column: ColOldpeakWinsorize, Output: ColOldpeakWinsorizeSqrt},
	}
	return n
}

// Stages returns the stage names in execution order.
func (n *Normalizer) Stages() []string {
	names := make([]string, len(n.stages))
	for i, s := range n.stages {
		names[i] = s.Name()
	}
	return names
}

// FitTransform fits every stage on the table it receives and applies it.
func (n *Normalizer) FitTransform(t *dataset.Table) (*dataset.Table, error) {
	out, err := n.run(t, true)
	if err != nil {
		return nil, err
	}
	n.state.SetDimensions(out.NCols(), t.NRows())
	n.state.SetFitted()
	return out, nil
}

// Transform applies the stages with the parameters learned by FitTransform.
func (n *Normalizer) Transform(t *dataset.Table) (*dataset.Table, error) {
	if err := n.state.RequireFitted("Normalizer", "Transform"); err != nil {
		return nil, err
	}
	return n.run(t, false)
}

func (n *Normalizer) run(t *dataset.Table, fit bool) (out *dataset.Table, err error) {
	defer errors.Recover(&err, "Normalizer")

	if t == nil || t.NRows() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "normalize")
	}
	cur := t
	for _, s := range n.stages {
		start := time.Now()
		rowsIn := cur.NRows()
		if fit {
			if err := s.Fit(cur); err != nil {
				return nil, err
			}
		}
		next, err := s.Transform(cur)
		if err != nil {
			return nil, err
		}
		fields := []any{
			log.StageKey, s.Name(),
			log.RowsInKey, rowsIn,
			log.RowsOutKey, next.NRows(),
			log.RowsDroppedKey, rowsIn - next.NRows(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		}
		n.logger.Debug("stage applied", append(fields, stageFields(s)...)...)
		cur = next
	}
	return cur, nil
}

// Skewness returns the skewness of oldpeak_winsorize and its log and sqrt
// variants measured during the last run.
func (n *Normalizer) Skewness() map[string]float64 {
	for _, s := range n.stages {
		if sq, ok := s.(*SqrtStage); ok {
			return sq.Skewness()
		}
	}
	return nil
}

// Thresholds returns the fitted winsorization caps and fence bounds keyed by
// "<stage>.<param>".
func (n *Normalizer) Thresholds() map[string]float64 {
	out := map[string]float64{}
	for _, s := range n.stages {
		switch st := s.(type) {
		case *WinsorizeStage:
			upper, limit := st.Params()
			out[attrKey(st.Name(), "upper")] = upper
			out[attrKey(st.Name(), "limit")] = limit
		case *FenceStage:
			out[attrKey(st.Name(), "lower")] = st.Fence().Lower
			out[attrKey(st.Name(), "upper")] = st.Fence().Upper
		}
	}
	return out
}
