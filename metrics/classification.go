package metrics

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/heartrisk/pkg/errors"
)

// logLossEps はlog(0)を避けるためのクリッピング幅
const logLossEps = 1e-15

// Accuracy は正解率（予測ラベルが一致した割合）を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var correct int
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率（1 - Accuracy）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// AUC はROC曲線下面積を計算する。yTrueは0/1、yScoreは正クラスのスコア。
// 片方のクラスしか存在しない場合は UndefinedMetricWarning を出して0.5を返す。
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	if _, err := checkPair("AUC", yTrue, yScore); err != nil {
		return 0, err
	}
	return ROCAUC(vecData(yTrue), vecData(yScore))
}

// AUCMatrix は行列形式の入力に対してAUCを計算する。先頭列のみを使う。
func AUCMatrix(yTrue, yScore mat.Matrix) (float64, error) {
	if yTrue == nil || yScore == nil {
		return 0, errors.NewValueError("AUCMatrix", "nil matrix")
	}
	rTrue, cTrue := yTrue.Dims()
	rScore, cScore := yScore.Dims()
	if rTrue == 0 || cTrue == 0 || cScore == 0 {
		return 0, errors.NewValueError("AUCMatrix", "empty matrix")
	}
	if rTrue != rScore {
		return 0, errors.NewDimensionError("AUCMatrix", rTrue, rScore, 0)
	}
	return ROCAUC(mat.Col(nil, 0, yTrue), mat.Col(nil, 0, yScore))
}

// ROCAUC is AUC on plain slices.
func ROCAUC(yTrue, scores []float64) (float64, error) {
	roc, err := ROCCurve(yTrue, scores)
	if err != nil {
		var ve *errors.ValueError
		if errors.As(err, &ve) && ve.Message == singleClassMsg {
			errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", "only one class present in y_true", 0.5))
			return 0.5, nil
		}
		return 0, err
	}
	return roc.AUC, nil
}

// ROC is a receiver operating characteristic curve. Thresholds are
// decreasing and Thresholds[0] is +Inf, where FPR and TPR are both 0.
type ROC struct {
	FPR        []float64 `yaml:"fpr"`
	TPR        []float64 `yaml:"tpr"`
	Thresholds []float64 `yaml:"-"`
	AUC        float64   `yaml:"auc"`
}

const singleClassMsg = "only one class present in y_true; ROC is undefined"

// ROCCurve computes the ROC curve of binary labels against scores, where a
// higher score means the positive class. Points on a straight segment are
// dropped; the area is unaffected.
func ROCCurve(yTrue, scores []float64) (*ROC, error) {
	n := len(yTrue)
	if n == 0 {
		return nil, errors.NewValueError("ROCCurve", "empty vector")
	}
	if len(scores) != n {
		return nil, errors.NewDimensionError("ROCCurve", n, len(scores), 0)
	}
	if err := checkBinary("ROCCurve", yTrue); err != nil {
		return nil, err
	}
	for i, s := range scores {
		if math.IsNaN(s) {
			return nil, errors.NewValueError("ROCCurve", fmt.Sprintf("score %d is NaN", i))
		}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(scores[b], scores[a]) })

	// cumulative counts at the last index of every distinct score
	var tps, fps, thresholds []float64
	var tp float64
	for k, idx := range order {
		tp += yTrue[idx]
		if k == n-1 || scores[order[k+1]] != scores[idx] {
			tps = append(tps, tp)
			fps = append(fps, float64(k+1)-tp)
			thresholds = append(thresholds, scores[idx])
		}
	}
	if len(tps) > 2 {
		keep := []int{0}
		for i := 1; i < len(tps)-1; i++ {
			d2f := fps[i+1] - 2*fps[i] + fps[i-1]
			d2t := tps[i+1] - 2*tps[i] + tps[i-1]
			if d2f != 0 || d2t != 0 {
				keep = append(keep, i)
			}
		}
		keep = append(keep, len(tps)-1)
		tps, fps, thresholds = pick(tps, keep), pick(fps, keep), pick(thresholds, keep)
	}

	pos, neg := tps[len(tps)-1], fps[len(fps)-1]
	if pos == 0 || neg == 0 {
		return nil, errors.NewValueError("ROCCurve", singleClassMsg)
	}

	roc := &ROC{
		FPR:        make([]float64, len(fps)+1),
		TPR:        make([]float64, len(tps)+1),
		Thresholds: append([]float64{math.Inf(1)}, thresholds...),
	}
	for i := range fps {
		roc.FPR[i+1] = fps[i] / neg
		roc.TPR[i+1] = tps[i] / pos
	}
	roc.AUC = integrate.Trapezoidal(roc.FPR, roc.TPR)
	return roc, nil
}

// Confusion is a binary confusion matrix with 1 as the positive class.
type Confusion struct {
	TN int `yaml:"tn"`
	FP int `yaml:"fp"`
	FN int `yaml:"fn"`
	TP int `yaml:"tp"`
}

// Matrix returns [[TN FP] [FN TP]], rows are true labels.
func (c Confusion) Matrix() *mat.Dense {
	return mat.NewDense(2, 2, []float64{float64(c.TN), float64(c.FP), float64(c.FN), float64(c.TP)})
}

// ConfusionMatrix counts binary predictions against labels.
func ConfusionMatrix(yTrue, yPred *mat.VecDense) (Confusion, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return Confusion{}, err
	}
	t, p := vecData(yTrue), vecData(yPred)
	if err := checkBinary("ConfusionMatrix", t); err != nil {
		return Confusion{}, err
	}
	if err := checkBinary("ConfusionMatrix", p); err != nil {
		return Confusion{}, err
	}
	var c Confusion
	for i := 0; i < n; i++ {
		switch {
		case t[i] == 1 && p[i] == 1:
			c.TP++
		case t[i] == 1:
			c.FN++
		case p[i] == 1:
			c.FP++
		default:
			c.TN++
		}
	}
	return c, nil
}

// BinaryLogLoss は二値分類の対数損失を計算する。確率は[eps, 1-eps]にクリップする。
func BinaryLogLoss(yTrue, yProb *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yProb)
	if err != nil {
		return 0, err
	}
	t := vecData(yTrue)
	if err := checkBinary("BinaryLogLoss", t); err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		p := errors.ClipValue(yProb.AtVec(i), logLossEps, 1-logLossEps)
		if t[i] == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

func checkPair(op string, a, b *mat.VecDense) (int, error) {
	if a == nil || b == nil || a.IsEmpty() || b.IsEmpty() {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if a.Len() != b.Len() {
		return 0, errors.NewDimensionError(op, a.Len(), b.Len(), 0)
	}
	return a.Len(), nil
}

func checkBinary(op string, y []float64) error {
	for i, v := range y {
		if v != 0 && v != 1 {
			return errors.NewValueError(op, fmt.Sprintf("label %d is %v, want 0 or 1", i, v))
		}
	}
	return nil
}

func vecData(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

func pick(x []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}
