package engine

import (
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/argus-video/argus/internal/logger"
	"github.com/argus-video/argus/internal/media"
)

// dnnEngine runs detection models through the OpenCV DNN module.
type dnnEngine struct {
	statsTracker

	modelPath string
	labels    []string
	bt        backendTarget
	opts      Options
	log       *logger.Logger

	net    gocv.Net
	loaded bool
}

func newDNNEngine(modelPath string, labels []string, bt backendTarget, opts Options, log *logger.Logger) *dnnEngine {
	return &dnnEngine{
		modelPath: modelPath,
		labels:    labels,
		bt:        bt,
		opts:      opts,
		log:       log,
	}
}

func (e *dnnEngine) Load() error {
	if e.loaded {
		return nil
	}
	net := gocv.ReadNet(e.modelPath, "")
	if net.Empty() {
		return fmt.Errorf("read model %s: empty network", e.modelPath)
	}
	if err := net.SetPreferableBackend(e.bt.backend); err != nil {
		net.Close()
		return fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(e.bt.target); err != nil {
		net.Close()
		return fmt.Errorf("set target: %w", err)
	}
	e.net = net
	e.loaded = true
	e.log.Info("model loaded", "path", e.modelPath, "classes", len(e.labels))
	return nil
}

func (e *dnnEngine) Preprocess(frame *media.Frame) (*Tensor, error) {
	if !e.loaded {
		return nil, ErrNotLoaded
	}
	blob := gocv.BlobFromImage(frame.Mat, 1.0/255.0,
		image.Pt(e.opts.InputWidth, e.opts.InputHeight),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	src, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read blob data: %w", err)
	}
	data := make([]float32, len(src))
	copy(data, src)
	return &Tensor{
		Data:  data,
		Shape: []int{1, 3, e.opts.InputHeight, e.opts.InputWidth},
	}, nil
}

func (e *dnnEngine) Infer(input *Tensor) (*Tensor, error) {
	if !e.loaded {
		return nil, ErrNotLoaded
	}
	blob := gocv.NewMatWithSizes(input.Shape, gocv.MatTypeCV32F)
	defer blob.Close()
	dst, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("map input mat: %w", err)
	}
	copy(dst, input.Data)

	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	defer out.Close()

	src, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output mat: %w", err)
	}
	data := make([]float32, len(src))
	copy(data, src)
	shape := append([]int(nil), out.Size()...)
	return &Tensor{Data: data, Shape: shape}, nil
}

func (e *dnnEngine) Postprocess(output *Tensor, origWidth, origHeight int, threshold float64) ([]Detection, error) {
	dets, err := decodeYOLO(output, e.labels,
		e.opts.InputWidth, e.opts.InputHeight, origWidth, origHeight, threshold)
	if err != nil {
		return nil, err
	}
	return nms(dets, e.opts.NMSThreshold), nil
}

func (e *dnnEngine) Detect(frame *media.Frame, threshold float64) ([]Detection, time.Duration, error) {
	if !e.loaded {
		return nil, 0, ErrNotLoaded
	}
	start := time.Now()

	input, err := e.Preprocess(frame)
	if err != nil {
		return nil, 0, err
	}
	output, err := e.Infer(input)
	if err != nil {
		return nil, 0, err
	}
	dets, err := e.Postprocess(output, frame.Width(), frame.Height(), threshold)
	if err != nil {
		return nil, 0, err
	}

	elapsed := time.Since(start)
	e.record(elapsed)
	return dets, elapsed, nil
}

func (e *dnnEngine) Stats() Stats { return e.snapshot() }

func (e *dnnEngine) Release() {
	if !e.loaded {
		return
	}
	e.net.Close()
	e.loaded = false
	e.log.Info("model released", "path", e.modelPath)
}
