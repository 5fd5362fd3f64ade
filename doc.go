// Package nbody simulates colliding spiral galaxies as a direct-summation
// gravitational n-body system and renders each step to an image.
//
// The root package holds everything that does not touch a device: the
// body and vector types, the galaxy and cloud generators, the camera,
// run configuration, the shared error type and the package logger.
// Backends live under internal/: internal/gpu runs the compute and render
// passes on a WebGPU device through gogpu/wgpu, internal/software runs
// the same arithmetic on the CPU.
//
// # Quick start
//
//	cfg := nbody.DefaultConfig()
//	cfg.Seed = 42
//	bodies := nbody.GenerateScene(cfg.Galaxies, cfg.Clouds, cfg.Rand())
//	// hand bodies to a backend, then Step and Render once per frame
//
// # Scenes
//
// A scene is a list of GalaxySpec and CloudSpec values. Each galaxy is a
// heavy center body, NumArms spiral arms of light bodies and a randomly
// scattered field population; all orbiters start with a tangential speed
// of OrbitSpeed. DefaultGalaxies returns two counter-moving galaxies of
// 20,001 bodies each.
//
// # Determinism
//
// Generation draws from an injected *rand.Rand. Config.Rand returns a
// seeded PCG source when Config.Seed is non-zero, making runs
// reproducible on the same backend.
//
// # Errors
//
// Backends report failures as *Error values carrying a Severity.
// Skip-frame errors drop one frame; every other error ends the run.
//
// # Logging
//
// Logging is silent by default. Call SetLogger with any *slog.Logger to
// enable it; internal packages log through Logger.
package nbody
