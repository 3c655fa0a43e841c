// Package sim provides the simulation driver for gandalf.
//
// # Reading Guide
//
// Start with these three files to understand the driver:
//   - config.go: the YAML parameter file, defaults and validation
//   - timestep.go: the integer clock and the block timestep hierarchy
//   - simulator.go: construction, the per-worker step loop, snapshots and
//     diagnostics
//
// # Architecture
//
// The sim package owns the outer loop; the physics and plumbing live in
// sub-packages:
//   - sim/particle/: the shared particle and star data model
//   - sim/kernel/: smoothing kernels and their lookup tables
//   - sim/eos/: equations of state
//   - sim/sph/: engines, neighbour searches, force sweeps and the fluid
//     integrator
//   - sim/nbody/: the star integrator and direct gravity sums
//   - sim/domain/: the simulation box and boundary ghosts
//   - sim/cluster/: the in-process worker fabric, domain decomposition,
//     ghost exchange and load balancing
//   - sim/sink/: sink particle formation and accretion
//   - sim/ic/: initial condition generators
//   - sim/snapshot/: frame capture and the column and binary file formats
//   - sim/trace/: run-trace recording
//
// # Key Interfaces
//
// The extension points are small interfaces:
//   - sph.Engine: per-particle density and force sums of one SPH flavour
//   - sph.Search: neighbour candidate gathering
//   - eos.EOS: pressure, sound speed and temperature closures
//   - kernel.Kernel: smoothing kernel values and gradients
//   - snapshot.Format: frame file encoding
//
// Every worker runs the same loop over replicated clock state, so the
// collectives issued by the ranks always line up; see simulator.go.
package sim
