// Package textdetect finds candidate number regions with a DB-style text
// detection model run through ONNX Runtime.
package textdetect

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/yalue/onnxruntime_go"

	"github.com/MeKo-Tech/bibwatch/internal/mempool"
	"github.com/MeKo-Tech/bibwatch/internal/models"
	"github.com/MeKo-Tech/bibwatch/internal/utils"
)

// Config controls the detector.
type Config struct {
	ModelPath   string
	LibraryPath string
	// Threshold binarises the probability map.
	Threshold float32
	// BoxThreshold drops regions whose mean probability is lower.
	BoxThreshold float64
	MaxSide      int
	NumThreads   int
	// MinArea drops regions smaller than this many map pixels.
	MinArea int
	// Unclip grows each region, since DB models predict shrunk text kernels.
	Unclip float64
	GPU    GPUConfig
}

// DefaultConfig returns settings for PP-OCR style detection models.
func DefaultConfig() Config {
	return Config{
		Threshold:    0.3,
		BoxThreshold: 0.6,
		MaxSide:      960,
		MinArea:      16,
		Unclip:       1.5,
	}
}

// Detector runs the text detection model. DetectRegions is safe for
// concurrent use; ONNX Runtime sessions support concurrent Run calls.
type Detector struct {
	cfg     Config
	logger  *slog.Logger
	mu      sync.RWMutex
	session *onnxruntime_go.DynamicAdvancedSession
}

// New loads the model at cfg.ModelPath.
func New(cfg Config, logger *slog.Logger) (*Detector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ModelPath == "" {
		return nil, errors.New("detection model path is empty")
	}
	if err := models.ValidateModelExists(cfg.ModelPath); err != nil {
		return nil, err
	}
	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("read model info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, fmt.Errorf("unexpected model signature: %d inputs, %d outputs", len(inputs), len(outputs))
	}

	opts, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer func() { _ = opts.Destroy() }()
	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("set thread count: %w", err)
		}
	}
	if cfg.GPU.Enabled {
		if err := appendCUDA(opts, cfg.GPU); err != nil {
			logger.Warn("CUDA unavailable, running detection on CPU", "error", err)
		}
	}

	session, err := onnxruntime_go.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("create detection session: %w", err)
	}

	logger.Debug("text detector ready", "model", cfg.ModelPath, "input", inputs[0].Name, "output", outputs[0].Name)
	return &Detector{cfg: cfg, logger: logger, session: session}, nil
}

// DetectRegions returns quadrilaterals around text in img, in image
// coordinates.
func (d *Detector) DetectRegions(ctx context.Context, img image.Image) ([]utils.Quad, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resized, sx, sy, err := utils.FitMultipleOf32(img, d.cfg.MaxSide)
	if err != nil {
		return nil, err
	}
	rb := resized.Bounds()
	buf := mempool.Float32.Get(3 * rb.Dx() * rb.Dy())
	defer mempool.Float32.Put(buf)
	data, w, h := utils.NormalizeCHWInto(resized, buf)

	prob, pw, ph, err := d.infer(data, w, h)
	if err != nil {
		return nil, err
	}

	// The map may be smaller than the input for some exports.
	mx := sx * float64(w) / float64(pw)
	my := sy * float64(h) / float64(ph)
	quads := Regions(prob, pw, ph, d.cfg)
	b := img.Bounds()
	for i := range quads {
		quads[i] = quads[i].Scale(mx, my)
		for j := range quads[i] {
			quads[i][j].X += float64(b.Min.X)
			quads[i][j].Y += float64(b.Min.Y)
		}
	}
	return quads, nil
}

func (d *Detector) infer(data []float32, w, h int) ([]float32, int, int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.session == nil {
		return nil, 0, 0, errors.New("detector is closed")
	}

	input, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(1, 3, int64(h), int64(w)), data)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("create input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	outputs := []onnxruntime_go.Value{nil}
	if err := d.session.Run([]onnxruntime_go.Value{input}, outputs); err != nil {
		return nil, 0, 0, fmt.Errorf("detection inference: %w", err)
	}
	defer func() { _ = outputs[0].Destroy() }()

	t, ok := outputs[0].(*onnxruntime_go.Tensor[float32])
	if !ok {
		return nil, 0, 0, fmt.Errorf("expected float32 output, got %T", outputs[0])
	}
	shape := t.GetShape()
	if len(shape) != 4 {
		return nil, 0, 0, fmt.Errorf("expected 4D output, got %v", shape)
	}
	out := make([]float32, len(t.GetData()))
	copy(out, t.GetData())
	return out, int(shape[3]), int(shape[2]), nil
}

// Close releases the session.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil
	}
	err := d.session.Destroy()
	d.session = nil
	return err
}
