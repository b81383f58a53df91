//go:build !cgo
// +build !cgo

package embedding

import (
	"context"

	"github.com/personaldrive/semidx/internal/semerr"
)

// ONNXEmbedder stub when built without CGO (see onnx.go for the real one).
type ONNXEmbedder struct{}

// NewONNXEmbedder fails when built without CGO: ONNX Runtime is unavailable.
func NewONNXEmbedder(_ string, _, _, _ int) (*ONNXEmbedder, error) {
	return nil, semerr.New(semerr.KindModelUnavailable,
		"ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime installed")
}

func (e *ONNXEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, semerr.New(semerr.KindModelUnavailable, "ONNX embedder not built")
}

func (e *ONNXEmbedder) Dimensions() int { return 0 }

func (e *ONNXEmbedder) Close() error { return nil }
