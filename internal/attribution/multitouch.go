package attribution

import (
	"math"
	"time"

	"github.com/donorpulse/donor-analytics/internal/models"
)

// Model identifies a credit-splitting scheme.
type Model string

const (
	ModelFirstTouch    Model = "first_touch"
	ModelLastTouch     Model = "last_touch"
	ModelLinear        Model = "linear"
	ModelPositionBased Model = "position_based"
	ModelTimeDecay     Model = "time_decay"
)

// Models lists every scheme in a fixed order.
var Models = []Model{ModelFirstTouch, ModelLastTouch, ModelLinear, ModelPositionBased, ModelTimeDecay}

// decayHalfLife controls time-decay weighting: a touchpoint loses half its
// weight for every seven days between it and the conversion.
const decayHalfLife = 7 * 24 * time.Hour

// Position-based split: 40% to the first touch, 40% to the last, the
// remaining 20% spread evenly across interior touchpoints.
const (
	positionEndWeight    = 0.4
	positionMiddleWeight = 0.2
)

// Credit is one touchpoint's share of a donation under a given model.
type Credit struct {
	Touchpoint models.Touchpoint `json:"touchpoint"`
	Weight     float64           `json:"weight"`
	Credit     float64           `json:"credit"`
}

// Allocate splits a donation amount across a donor's pre-donation
// touchpoints under all five models at once, so the outputs are directly
// comparable. The journey must be ordered by occurrence; a trailing donation
// event marks the conversion time and receives no credit. A journey with no
// marketing touchpoints yields an empty result.
func Allocate(journey []models.Touchpoint, amount float64) map[Model][]Credit {
	touches, conversionAt := splitJourney(journey)
	if len(touches) == 0 {
		return map[Model][]Credit{}
	}

	result := make(map[Model][]Credit, len(Models))
	for _, model := range Models {
		weights := modelWeights(model, touches, conversionAt)
		credits := make([]Credit, len(touches))
		for i, tp := range touches {
			credits[i] = Credit{
				Touchpoint: tp,
				Weight:     weights[i],
				Credit:     amount * weights[i],
			}
		}
		result[model] = credits
	}
	return result
}

// splitJourney separates marketing touchpoints from the trailing donation
// event. The conversion time is the donation's timestamp when present,
// otherwise the last touchpoint's.
func splitJourney(journey []models.Touchpoint) ([]models.Touchpoint, time.Time) {
	if len(journey) == 0 {
		return nil, time.Time{}
	}

	last := journey[len(journey)-1]
	touches := journey
	conversionAt := last.OccurredAt
	if last.Channel == models.ChannelDonation {
		touches = journey[:len(journey)-1]
	}
	if len(touches) == 0 {
		return nil, conversionAt
	}
	if conversionAt.IsZero() {
		conversionAt = touches[len(touches)-1].OccurredAt
	}
	return touches, conversionAt
}

// modelWeights returns per-touchpoint weights summing to 1.
func modelWeights(model Model, touches []models.Touchpoint, conversionAt time.Time) []float64 {
	n := len(touches)
	weights := make([]float64, n)

	switch model {
	case ModelFirstTouch:
		weights[0] = 1

	case ModelLastTouch:
		weights[n-1] = 1

	case ModelLinear:
		for i := range weights {
			weights[i] = 1 / float64(n)
		}

	case ModelPositionBased:
		switch n {
		case 1:
			weights[0] = 1
		case 2:
			// No interior touchpoints to take the middle 20%; renormalize
			// the two ends to an even 50/50 split.
			weights[0] = 0.5
			weights[1] = 0.5
		default:
			weights[0] = positionEndWeight
			weights[n-1] = positionEndWeight
			middle := positionMiddleWeight / float64(n-2)
			for i := 1; i < n-1; i++ {
				weights[i] = middle
			}
		}

	case ModelTimeDecay:
		var total float64
		for i, tp := range touches {
			age := conversionAt.Sub(tp.OccurredAt)
			if age < 0 {
				age = 0
			}
			w := math.Exp2(-age.Hours() / decayHalfLife.Hours())
			weights[i] = w
			total += w
		}
		if total > 0 {
			for i := range weights {
				weights[i] /= total
			}
		} else {
			for i := range weights {
				weights[i] = 1 / float64(n)
			}
		}
	}

	return weights
}
