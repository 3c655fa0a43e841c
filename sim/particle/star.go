package particle

// Star is a point-mass N-body particle: either a genuine star from the
// initial conditions or a sink formed by gravitational collapse. Star-gas
// interactions are softened with the mean length (h_star + h_gas)/2;
// star-star interactions are unsoftened.
type Star struct {
	R  Vec
	V  Vec
	A  Vec
	R0 Vec
	V0 Vec
	A0 Vec

	M    float64
	H    float64 // softening length for star-gas interactions
	GPot float64 // potential magnitude (stored positive)

	Active bool
	Level  int
	NStep  int64
	NLast  int64
}
