package optim

import "math"

// SGD is stochastic gradient descent with optional L2 weight decay and an
// inverse-scaling learning-rate schedule.
type SGD struct {
	LearningRate float64
	WeightDecay  float64
	// Decay shrinks the rate as LearningRate / (1 + Decay*epoch).
	Decay float64

	epoch int
}

func NewSGD(lr float64) *SGD { return &SGD{LearningRate: lr} }

// Rate is the learning rate for the current epoch.
func (o *SGD) Rate() float64 {
	return o.LearningRate / (1 + o.Decay*float64(o.epoch))
}

// Step updates weights in place. Weight decay is not applied to bias terms;
// callers pass those through StepBias.
func (o *SGD) Step(weights, grads []float64) {
	lr := o.Rate()
	for i := range weights {
		weights[i] -= lr * (grads[i] + o.WeightDecay*weights[i])
	}
}

// StepBias updates a scalar without weight decay.
func (o *SGD) StepBias(b *float64, grad float64) {
	*b -= o.Rate() * grad
}

// NextEpoch advances the schedule.
func (o *SGD) NextEpoch() { o.epoch++ }

// Norm returns the L2 norm of g, useful for convergence checks.
func Norm(g []float64) float64 {
	s := 0.0
	for _, v := range g {
		s += v * v
	}
	return math.Sqrt(s)
}
