// Package chart shapes prediction vectors into grouped bar chart data that
// Chart.js renders directly.
package chart

const (
	CNNColor   = "#6B46C1"
	DenseColor = "#4FD1C5"
)

var Labels = []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}

type Dataset struct {
	Label           string    `json:"label"`
	Data            []float32 `json:"data"`
	BackgroundColor string    `json:"backgroundColor"`
}

type Data struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Build never fails: nil or empty vectors become empty series.
func Build(dense, cnn []float32) Data {
	return Data{
		Labels: append([]string(nil), Labels...),
		Datasets: []Dataset{
			{Label: "CNN", Data: series(cnn), BackgroundColor: CNNColor},
			{Label: "Dense", Data: series(dense), BackgroundColor: DenseColor},
		},
	}
}

// Series returns the dataset with the given label.
func (d Data) Series(label string) (Dataset, bool) {
	for _, ds := range d.Datasets {
		if ds.Label == label {
			return ds, true
		}
	}
	return Dataset{}, false
}

func series(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
