package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Network is a dense feed-forward classifier loaded from an "mlp" artifact.
// External trainers export their weights in this format; the forward pass
// runs in-process so the prediction path never leaves the server.
type Network struct {
	Layers []DenseLayer `json:"layers"`
}

// DenseLayer holds the weights of one fully connected layer. Weights is
// indexed [output][input].
type DenseLayer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"` // "relu" or "linear"
}

// NumClasses returns the output width of the final layer.
func (n *Network) NumClasses() int {
	if len(n.Layers) == 0 {
		return 0
	}
	return len(n.Layers[len(n.Layers)-1].Bias)
}

// Dim returns the input width of the first layer.
func (n *Network) Dim() int {
	if len(n.Layers) == 0 || len(n.Layers[0].Weights) == 0 {
		return 0
	}
	return len(n.Layers[0].Weights[0])
}

// Probabilities runs the forward pass and applies a softmax to the final
// layer's outputs.
func (n *Network) Probabilities(vec []float64) ([]float64, error) {
	if len(vec) != n.Dim() {
		return nil, fmt.Errorf("%w: got %d, network expects %d", ErrDimensionMismatch, len(vec), n.Dim())
	}

	activ := vec
	for li := range n.Layers {
		layer := &n.Layers[li]
		out := make([]float64, len(layer.Weights))
		for o, row := range layer.Weights {
			sum := layer.Bias[o]
			for i, w := range row {
				sum += w * activ[i]
			}
			if layer.Activation == "relu" && sum < 0 {
				sum = 0
			}
			out[o] = sum
		}
		activ = out
	}

	return softmax(activ), nil
}

// loadNetwork deserializes an mlp artifact payload and validates that
// consecutive layer shapes line up.
func loadNetwork(data json.RawMessage) (Classifier, error) {
	var n Network
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	if len(n.Layers) == 0 {
		return nil, errors.New("mlp artifact has no layers")
	}

	prevWidth := -1
	for li, layer := range n.Layers {
		if len(layer.Weights) == 0 || len(layer.Weights) != len(layer.Bias) {
			return nil, fmt.Errorf("layer %d has %d weight rows but %d biases", li, len(layer.Weights), len(layer.Bias))
		}
		width := len(layer.Weights[0])
		for o, row := range layer.Weights {
			if len(row) != width {
				return nil, fmt.Errorf("layer %d row %d has ragged width", li, o)
			}
		}
		if prevWidth >= 0 && width != prevWidth {
			return nil, fmt.Errorf("layer %d expects %d inputs but layer %d produces %d", li, width, li-1, prevWidth)
		}
		prevWidth = len(layer.Weights)
	}

	return &n, nil
}
