package harness

import (
	"github.com/YuminosukeSato/heartrisk/core/model"
	"github.com/YuminosukeSato/heartrisk/sklearn/ensemble"
	"github.com/YuminosukeSato/heartrisk/sklearn/linear_model"
	"github.com/YuminosukeSato/heartrisk/sklearn/svm"
	"github.com/YuminosukeSato/heartrisk/sklearn/tree"
)

// Model names as they appear in reports and chart file names.
const (
	LogisticRegression = "Logistic Regression"
	DecisionTree       = "Decision Tree"
	SVC                = "SVC"
	RandomForest       = "Random Forest"
)

// ModelSpec names a classifier and builds fresh, unfitted instances of it.
// New is called once for the main fit and once per CV fold.
type ModelSpec struct {
	Name string
	New  func() model.Classifier
}

// DefaultModels returns the four compared classifiers. Models that take a
// seed get seed; the forest fits its trees on nJobs workers.
func DefaultModels(seed uint64, nJobs int) []ModelSpec {
	return []ModelSpec{
		{
			Name: LogisticRegression,
			New: func() model.Classifier {
				return linear_model.NewLogisticRegression(linear_model.WithLRRandomState(int64(seed)))
			},
		},
		{
			Name: DecisionTree,
			New: func() model.Classifier {
				return tree.NewDecisionTreeClassifier(tree.WithRandomState(seed))
			},
		},
		{
			Name: SVC,
			New: func() model.Classifier {
				return svm.NewSVC()
			},
		},
		{
			Name: RandomForest,
			New: func() model.Classifier {
				return ensemble.NewRandomForestClassifier(
					ensemble.WithRandomState(seed),
					ensemble.WithNJobs(nJobs),
				)
			},
		},
	}
}
