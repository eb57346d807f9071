package services

// Reliability is Cronbach's alpha over the questions of one dimension.
type Reliability struct {
	Alpha float64 `json:"alpha"`
	Items int     `json:"items"`
	N     int     `json:"n"`
}

type moments struct {
	sum, sumSq float64
}

func (m *moments) add(v float64) {
	m.sum += v
	m.sumSq += v * v
}

// variance is the population variance over n observations.
func (m moments) variance(n int) float64 {
	nf := float64(n)
	mean := m.sum / nf
	return m.sumSq/nf - mean*mean
}

// alphaAccumulator computes Cronbach's alpha from running sums, so rows need not be kept.
// Every row must carry the same item set.
type alphaAccumulator struct {
	n     int
	items map[string]*moments
	total moments
}

func newAlphaAccumulator() *alphaAccumulator {
	return &alphaAccumulator{items: map[string]*moments{}}
}

func (a *alphaAccumulator) addRow(row map[string]float64) {
	a.n++
	var total float64
	for id, v := range row {
		m := a.items[id]
		if m == nil {
			m = &moments{}
			a.items[id] = m
		}
		m.add(v)
		total += v
	}
	a.total.add(total)
}

// alpha uses population variance throughout, which yields 1.0 for perfectly correlated
// items. The result is clamped to [0, 1]; degenerate input gives 0.
func (a *alphaAccumulator) alpha() float64 {
	k := len(a.items)
	if a.n == 0 || k < 2 {
		return 0
	}
	totalVar := a.total.variance(a.n)
	if totalVar <= 1e-12 {
		return 0
	}
	var sumItemVars float64
	for _, m := range a.items {
		sumItemVars += m.variance(a.n)
	}
	kf := float64(k)
	alpha := (kf / (kf - 1.0)) * (1.0 - (sumItemVars / totalVar))
	if alpha < 0 {
		return 0
	}
	if alpha > 1 {
		return 1
	}
	return alpha
}
