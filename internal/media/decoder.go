package media

import (
	"fmt"
	"strconv"
	"strings"

	"gocv.io/x/gocv"
)

// Decoder abstracts a video capture backend so the source loop can be
// tested without real streams.
type Decoder interface {
	// Open establishes the connection to the underlying stream.
	Open() error
	// Read decodes the next frame into a new Mat. It returns false when
	// no frame could be read (end of stream, connection lost).
	Read() (gocv.Mat, bool)
	// Close releases the capture resources.
	Close() error
}

// DecoderFactory creates a Decoder for a source URL. Injected into
// FrameSource so tests can supply fakes.
type DecoderFactory func(url string) Decoder

type sourceKind int

const (
	kindNetwork sourceKind = iota
	kindDevice
	kindFile
)

func classifySource(url string) sourceKind {
	lower := strings.ToLower(url)
	for _, scheme := range []string{"rtsp://", "rtmp://", "http://", "https://", "udp://", "tcp://"} {
		if strings.HasPrefix(lower, scheme) {
			return kindNetwork
		}
	}
	if _, err := strconv.Atoi(url); err == nil {
		return kindDevice
	}
	return kindFile
}

// captureDecoder wraps gocv.VideoCapture.
type captureDecoder struct {
	url  string
	kind sourceKind
	cap  *gocv.VideoCapture
}

// NewCaptureDecoder returns the default OpenCV-backed decoder. The URL
// may be a network stream, a local device index or a file path.
func NewCaptureDecoder(url string) Decoder {
	return &captureDecoder{url: url, kind: classifySource(url)}
}

func (d *captureDecoder) Open() error {
	var (
		cap *gocv.VideoCapture
		err error
	)
	switch d.kind {
	case kindDevice:
		idx, _ := strconv.Atoi(d.url)
		cap, err = gocv.VideoCaptureDevice(idx)
	default:
		cap, err = gocv.OpenVideoCapture(d.url)
	}
	if err != nil {
		return fmt.Errorf("open capture %s: %w", d.url, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return fmt.Errorf("capture %s did not open", d.url)
	}
	d.cap = cap
	return nil
}

func (d *captureDecoder) Read() (gocv.Mat, bool) {
	if d.cap == nil {
		return gocv.Mat{}, false
	}
	mat := gocv.NewMat()
	if ok := d.cap.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return gocv.Mat{}, false
	}
	return mat, true
}

func (d *captureDecoder) Close() error {
	if d.cap == nil {
		return nil
	}
	err := d.cap.Close()
	d.cap = nil
	return err
}
