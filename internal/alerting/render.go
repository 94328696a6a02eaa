package alerting

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/argus-video/argus/internal/engine"
	"github.com/argus-video/argus/internal/media"
	"github.com/argus-video/argus/internal/store"
)

var (
	boxColor   = color.RGBA{R: 0, G: 0, B: 255, A: 0}
	roiColor   = color.RGBA{R: 255, G: 191, B: 0, A: 0}
	textColor  = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	labelScale = 0.5
)

// Annotate draws detections and the optional region of interest onto a
// copy of the frame and returns it JPEG-encoded.
func Annotate(frame *media.Frame, dets []engine.Detection, roi *store.ROI, quality int) ([]byte, error) {
	canvas := frame.Mat.Clone()
	defer canvas.Close()

	if roi != nil {
		gocv.Rectangle(&canvas, image.Rect(roi.X, roi.Y, roi.X+roi.W, roi.Y+roi.H), roiColor, 2)
	}
	for _, d := range dets {
		gocv.Rectangle(&canvas, image.Rect(d.X1, d.Y1, d.X2, d.Y2), boxColor, 2)
		caption := fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
		origin := image.Pt(d.X1, d.Y1-6)
		if origin.Y < 12 {
			origin.Y = d.Y1 + 16
		}
		gocv.PutText(&canvas, caption, origin, gocv.FontHersheySimplex, labelScale, textColor, 1)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, canvas,
		[]int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode annotated frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
