package kernel

// tableSize is the number of entries per lookup table.
const tableSize = 1000

// Tabulated wraps a base kernel with precomputed lookup tables: uniform in
// s^2 for the weights the density loop evaluates, uniform in s for the
// rest. Lookups take the left grid node, so values are exact at nodes and
// carry an O(Range/tableSize) interpolation error between them.
type Tabulated struct {
	base     Kernel
	res      float64 // entries per unit of s
	resSqd   float64 // entries per unit of s^2
	w0       []float64
	w1       []float64
	wgrav    []float64
	wpot     []float64
	w0S2     []float64
	womegaS2 []float64
	wzetaS2  []float64
}

// NewTabulated builds lookup tables over the base kernel's support.
func NewTabulated(base Kernel) *Tabulated {
	t := &Tabulated{
		base:     base,
		res:      float64(tableSize) / base.Range(),
		resSqd:   float64(tableSize) / base.RangeSqd(),
		w0:       make([]float64, tableSize),
		w1:       make([]float64, tableSize),
		wgrav:    make([]float64, tableSize),
		wpot:     make([]float64, tableSize),
		w0S2:     make([]float64, tableSize),
		womegaS2: make([]float64, tableSize),
		wzetaS2:  make([]float64, tableSize),
	}
	for i := 0; i < tableSize; i++ {
		s := float64(i) / t.res
		ssqd := float64(i) / t.resSqd
		t.w0[i] = base.W0(s)
		t.w1[i] = base.W1(s)
		t.wgrav[i] = base.WGrav(s)
		t.wpot[i] = base.WPot(s)
		t.w0S2[i] = base.W0S2(ssqd)
		t.womegaS2[i] = base.WOmegaS2(ssqd)
		t.wzetaS2[i] = base.WZetaS2(ssqd)
	}
	return t
}

func (t *Tabulated) Name() string      { return "tabulated:" + t.base.Name() }
func (t *Tabulated) Range() float64    { return t.base.Range() }
func (t *Tabulated) RangeSqd() float64 { return t.base.RangeSqd() }
func (t *Tabulated) Norm() float64     { return t.base.Norm() }

func (t *Tabulated) lookupS(table []float64, s float64) float64 {
	i := int(s * t.res)
	if i < 0 || i >= tableSize {
		return 0.0
	}
	return table[i]
}

func (t *Tabulated) lookupS2(table []float64, ssqd float64) float64 {
	i := int(ssqd * t.resSqd)
	if i < 0 || i >= tableSize {
		return 0.0
	}
	return table[i]
}

func (t *Tabulated) W0(s float64) float64            { return t.lookupS(t.w0, s) }
func (t *Tabulated) W0S2(ssqd float64) float64       { return t.lookupS2(t.w0S2, ssqd) }
func (t *Tabulated) W1(s float64) float64            { return t.lookupS(t.w1, s) }
func (t *Tabulated) WOmegaS2(ssqd float64) float64   { return t.lookupS2(t.womegaS2, ssqd) }
func (t *Tabulated) WZetaS2(ssqd float64) float64    { return t.lookupS2(t.wzetaS2, ssqd) }

// WGrav and WPot delegate beyond the support so the point-mass tails stay
// exact at any separation.

func (t *Tabulated) WGrav(s float64) float64 {
	if s >= t.base.Range() {
		return t.base.WGrav(s)
	}
	return t.lookupS(t.wgrav, s)
}

func (t *Tabulated) WPot(s float64) float64 {
	if s >= t.base.Range() {
		return t.base.WPot(s)
	}
	return t.lookupS(t.wpot, s)
}
