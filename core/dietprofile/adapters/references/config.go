package references

import (
	"time"

	"dietprofile/core/dietprofile/domain"
	"dietprofile/modules/rpc"
)

// Config names the message patterns and payload keys of the lookups. The
// defaults match the user and catalog services.
type Config struct {
	Timeout time.Duration `env:"TIMEOUT" envDefault:"5s"`

	AthleteRole string `env:"ATHLETE_ROLE" envDefault:"user"`
	AthleteCmd  string `env:"ATHLETE_CMD"  envDefault:"getById"`
	AthleteKey  string `env:"ATHLETE_KEY"  envDefault:"idDeportista"`

	FoodRole string `env:"FOOD_ROLE" envDefault:"alimento"`
	FoodCmd  string `env:"FOOD_CMD"  envDefault:"getById"`
	FoodKey  string `env:"FOOD_KEY"  envDefault:"alimentoId"`

	DietTypeRole string `env:"DIET_TYPE_ROLE" envDefault:"tipoDieta"`
	DietTypeCmd  string `env:"DIET_TYPE_CMD"  envDefault:"getById"`
	DietTypeKey  string `env:"DIET_TYPE_KEY"  envDefault:"idTipoDieta"`
}

func (c Config) Athletes() Lookup {
	return Lookup{Kind: domain.KindAthlete, Pattern: rpc.Pattern{"role": c.AthleteRole, "cmd": c.AthleteCmd}, KeyField: c.AthleteKey}
}

func (c Config) Foods() Lookup {
	return Lookup{Kind: domain.KindFood, Pattern: rpc.Pattern{"role": c.FoodRole, "cmd": c.FoodCmd}, KeyField: c.FoodKey}
}

func (c Config) DietTypes() Lookup {
	return Lookup{Kind: domain.KindDietType, Pattern: rpc.Pattern{"role": c.DietTypeRole, "cmd": c.DietTypeCmd}, KeyField: c.DietTypeKey}
}
