package engine

import (
	"fmt"
	"sort"
	"strings"

	"gocv.io/x/gocv"

	"github.com/argus-video/argus/internal/logger"
)

// Platform identifiers accepted by the factory.
const (
	PlatformCPUX86    = "cpu_x86"
	PlatformCPUARM    = "cpu_arm"
	PlatformNvidiaGPU = "nvidia_gpu"
)

// UnsupportedPlatformError is returned when a model targets a platform
// the factory has no engine for.
type UnsupportedPlatformError struct {
	Platform  string
	Supported []string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported inference platform %q (supported: %s)",
		e.Platform, strings.Join(e.Supported, ", "))
}

// Options holds model-independent inference settings.
type Options struct {
	InputWidth   int
	InputHeight  int
	NMSThreshold float64
}

func (o *Options) withDefaults() {
	if o.InputWidth <= 0 {
		o.InputWidth = 640
	}
	if o.InputHeight <= 0 {
		o.InputHeight = 640
	}
	if o.NMSThreshold <= 0 {
		o.NMSThreshold = 0.4
	}
}

type backendTarget struct {
	backend gocv.NetBackendType
	target  gocv.NetTargetType
}

// Factory creates inference engines for a fixed set of platforms.
type Factory struct {
	platforms map[string]backendTarget
	opts      Options
	log       *logger.Logger
}

// NewFactory builds the factory with all compiled-in platforms
// registered.
func NewFactory(opts Options, log *logger.Logger) *Factory {
	opts.withDefaults()
	return &Factory{
		platforms: map[string]backendTarget{
			PlatformCPUX86:    {gocv.NetBackendDefault, gocv.NetTargetCPU},
			PlatformCPUARM:    {gocv.NetBackendDefault, gocv.NetTargetCPU},
			PlatformNvidiaGPU: {gocv.NetBackendCUDA, gocv.NetTargetCUDA},
		},
		opts: opts,
		log:  log,
	}
}

// Supported lists the registered platform identifiers, sorted.
func (f *Factory) Supported() []string {
	out := make([]string, 0, len(f.platforms))
	for p := range f.platforms {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// IsSupported reports whether the platform has a registered engine.
func (f *Factory) IsSupported(platform string) bool {
	_, ok := f.platforms[platform]
	return ok
}

// Create returns an unloaded engine for the model on the given
// platform. Callers must Load before use and Release after.
func (f *Factory) Create(platform, modelPath string, labels []string) (Engine, error) {
	bt, ok := f.platforms[platform]
	if !ok {
		return nil, &UnsupportedPlatformError{Platform: platform, Supported: f.Supported()}
	}
	f.log.Info("creating inference engine", "platform", platform, "model", modelPath)
	return newDNNEngine(modelPath, labels, bt, f.opts, f.log), nil
}
