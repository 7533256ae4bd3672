// Surface generation using layered simplex noise. High noise values become
// obstacles; unreachable pockets are sealed so every open cell is connected.
package world

import (
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds surface generation parameters.
type GenConfig struct {
	Width         int     `yaml:"width" json:"width"`                   // Cells along X
	Depth         int     `yaml:"depth" json:"depth"`                   // Cells along Z
	CellSize      float64 `yaml:"cell_size" json:"cell_size"`           // World units per cell
	Seed          int64   `yaml:"seed" json:"seed"`                     // Random seed (0 = random)
	ObstacleLevel float64 `yaml:"obstacle_level" json:"obstacle_level"` // Noise above this is blocked (0.0–1.0, >= 1 disables)
	Frequency     float64 `yaml:"frequency" json:"frequency"`           // Base noise frequency per cell
	Octaves       int     `yaml:"octaves" json:"octaves"`
	Walled        bool    `yaml:"walled" json:"walled"` // Block the outer ring of cells
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:         64,
		Depth:         64,
		CellSize:      1,
		Seed:          0,
		ObstacleLevel: 0.68,
		Frequency:     0.09,
		Octaves:       3,
		Walled:        true,
	}
}

// SmallTestConfig returns a tiny surface for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Width:         16,
		Depth:         16,
		CellSize:      1,
		Seed:          42,
		ObstacleLevel: 0.75,
		Frequency:     0.15,
		Octaves:       2,
		Walled:        false,
	}
}

// Generate creates a walkable grid from cfg.
func Generate(cfg GenConfig) *Grid {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	octaves := cfg.Octaves
	if octaves < 1 {
		octaves = 1
	}

	noise := opensimplex.NewNormalized(seed)
	g := NewGrid(cfg.Width, cfg.Depth, cfg.CellSize)

	for z := 0; z < cfg.Depth; z++ {
		for x := 0; x < cfg.Width; x++ {
			c := Cell{X: x, Z: z}
			v := octaveNoise(noise, float64(x), float64(z), octaves, cfg.Frequency, 0.5)
			if v > cfg.ObstacleLevel {
				g.SetWalkable(c, false)
			}
			if cfg.Walled && (x == 0 || z == 0 || x == cfg.Width-1 || z == cfg.Depth-1) {
				g.SetWalkable(c, false)
			}
		}
	}

	// Post-pass: keep only the largest connected region open.
	keepLargestRegion(g)

	return g
}

// octaveNoise sums several noise octaves, normalized back to [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// keepLargestRegion blocks every walkable cell not in the largest 4-connected region.
func keepLargestRegion(g *Grid) {
	label := make([]int, g.Width*g.Depth)
	best, bestSize := 0, 0
	next := 1

	for _, c := range g.WalkableCells() {
		idx := c.Z*g.Width + c.X
		if label[idx] != 0 {
			continue
		}
		size := 0
		stack := []Cell{c}
		label[idx] = next
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			for _, nb := range cur.Neighbors() {
				if !g.Walkable(nb) {
					continue
				}
				ni := nb.Z*g.Width + nb.X
				if label[ni] == 0 {
					label[ni] = next
					stack = append(stack, nb)
				}
			}
		}
		if size > bestSize {
			best, bestSize = next, size
		}
		next++
	}

	for i, l := range label {
		if l != 0 && l != best {
			g.walkable[i] = false
		}
	}
}
