package cluster

import "fmt"

// tournament builds the Berger round-robin calendar: size-1 rounds in
// which every worker meets every other worker exactly once and no two
// pairs share a peer within a round. rounds[i][rank] is rank's peer in
// round i. A single worker plays no rounds; odd counts cannot be
// scheduled.
func tournament(size int) ([][]int, error) {
	if size == 1 {
		return nil, nil
	}
	if size%2 != 0 {
		return nil, fmt.Errorf("cluster: migration tournament needs an even worker count, got %d", size)
	}
	nturns := size - 1
	rounds := make([][]int, nturns)
	turn := make([]int, size)
	for iturn := 0; iturn < nturns; iturn++ {
		turn[0] = nturns
		for i := 1; i < size; i++ {
			turn[i] = (i + iturn) % nturns
		}
		round := make([]int, size)
		for istep := 0; istep < size/2; istep++ {
			a := turn[istep]
			b := turn[size-1-istep]
			round[a] = b
			round[b] = a
		}
		rounds[iturn] = round
	}
	return rounds, nil
}
