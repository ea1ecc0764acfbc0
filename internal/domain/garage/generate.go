// Package garage builds random vehicles for bulk generation.
package garage

import (
	"math/rand"
	"sync"

	"github.com/okian/asyncrace/internal/domain/model"
)

var (
	brands = []string{
		"Tesla", "BMW", "Audi", "Porsche", "Ferrari", "Lamborghini", "Mercedes",
		"Ford", "Chevrolet", "Toyota", "Honda", "Nissan", "Subaru",
	}
	models = []string{
		"Model S", "M5", "A4", "C-Class", "B4", "CC-2", "MC-6", "488", "911",
		"MX-5", "WRX", "MCA",
	}
	palette = []string{
		"#FF0000", "#00FF00", "#0000FF", "#FFFF00", "#FF00FF", "#00FFFF",
		"#FFA500", "#A52A2A", "#800080",
	}
)

// Generator draws vehicle names and colors.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator seeded with seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))} //nolint:gosec // cosmetic randomness
}

// Vehicles returns n random vehicle inputs. n below 1 yields none.
func (g *Generator) Vehicles(n int) []model.VehicleInput {
	if n < 1 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]model.VehicleInput, n)
	for i := range out {
		out[i] = model.VehicleInput{
			Name:  brands[g.rng.Intn(len(brands))] + " " + models[g.rng.Intn(len(models))],
			Color: palette[g.rng.Intn(len(palette))],
		}
	}
	return out
}
