package domain

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func TestShouldAlert(t *testing.T) {
	tests := []struct {
		name         string
		price        float64
		target       float64
		lastNotified *float64
		want         bool
	}{
		{"above target", 60, 50, nil, false},
		{"at target never notified", 50, 50, nil, true},
		{"below target never notified", 45, 50, nil, true},
		{"higher than last notified", 48, 50, ptr(45), false},
		{"equal to last notified", 45, 50, ptr(45), false},
		{"strictly lower than last notified", 40, 50, ptr(45), true},
		{"above target after notification", 55, 50, ptr(45), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldAlert(tt.price, tt.target, tt.lastNotified))
		})
	}
}

// firedIndexes replays prices through the rule the way the monitor does,
// advancing the suppression state after every alert.
func firedIndexes(prices []float64, target float64) []int {
	p := Product{TargetPrice: target}
	var fired []int
	for i, price := range prices {
		if p.ShouldAlert(price) {
			fired = append(fired, i)
			v := price
			p.LastNotifiedPrice = &v
		}
	}
	return fired
}

// referenceFired restates the rule over the whole sequence: index i fires iff
// the price is within target and below the price of the previous firing.
func referenceFired(prices []float64, target float64) []int {
	var fired []int
	for i, price := range prices {
		if price > target {
			continue
		}
		if len(fired) == 0 || price < prices[fired[len(fired)-1]] {
			fired = append(fired, i)
		}
	}
	return fired
}

func TestShouldAlert_MatchesReferenceOnRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 1024))

	for run := 0; run < 500; run++ {
		target := float64(rng.IntN(100) + 1)
		n := rng.IntN(40) + 1
		prices := make([]float64, n)
		for i := range prices {
			// cents, so that equal prices occur often
			prices[i] = float64(rng.IntN(int(target*2)*100)) / 100
		}

		got := firedIndexes(prices, target)
		want := referenceFired(prices, target)
		if !assert.Equal(t, want, got, "run %d target %.2f prices %v", run, target, prices) {
			return
		}

		var last *float64
		for _, i := range got {
			assert.LessOrEqual(t, prices[i], target)
			if last != nil {
				assert.Less(t, prices[i], *last)
			}
			v := prices[i]
			last = &v
		}
	}
}

func TestShouldAlert_Scenario(t *testing.T) {
	p := Product{TargetPrice: 50}

	assert.False(t, p.ShouldAlert(60))
	assert.Nil(t, p.LastNotifiedPrice)

	assert.True(t, p.ShouldAlert(45))
	p.LastNotifiedPrice = ptr(45)

	assert.False(t, p.ShouldAlert(48))

	assert.True(t, p.ShouldAlert(40))
}

func TestProductWithLatest_LatestPrice(t *testing.T) {
	_, ok := ProductWithLatest{}.LatestPrice()
	assert.False(t, ok)

	price, ok := ProductWithLatest{Latest: &Observation{Price: 12.5}}.LatestPrice()
	assert.True(t, ok)
	assert.Equal(t, 12.5, price)
}
