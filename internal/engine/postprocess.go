package engine

import (
	"fmt"
	"sort"
)

// decodeYOLO turns a raw YOLO output tensor of shape (1, N, 5+numClasses)
// or (N, 5+numClasses) into candidate detections in original pixel
// space. Row layout: cx, cy, w, h, objectness, class scores.
func decodeYOLO(output *Tensor, labels []string, inW, inH, origW, origH int, threshold float64) ([]Detection, error) {
	shape := output.Shape
	if len(shape) == 3 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) != 2 || shape[1] < 6 {
		return nil, fmt.Errorf("unexpected output shape %v", output.Shape)
	}
	rows, cols := shape[0], shape[1]
	if rows*cols > len(output.Data) {
		return nil, fmt.Errorf("output shape %v exceeds data length %d", output.Shape, len(output.Data))
	}

	scaleX := float64(origW) / float64(inW)
	scaleY := float64(origH) / float64(inH)

	var dets []Detection
	for r := 0; r < rows; r++ {
		row := output.Data[r*cols : (r+1)*cols]
		obj := float64(row[4])
		if obj <= 0 {
			continue
		}

		classID := 0
		best := float64(row[5])
		for c := 6; c < cols; c++ {
			if v := float64(row[c]); v > best {
				best = v
				classID = c - 5
			}
		}
		conf := obj * best
		if conf < threshold {
			continue
		}

		cx, cy := float64(row[0]), float64(row[1])
		w, h := float64(row[2]), float64(row[3])
		x1 := int((cx - w/2) * scaleX)
		y1 := int((cy - h/2) * scaleY)
		x2 := int((cx + w/2) * scaleX)
		y2 := int((cy + h/2) * scaleY)

		x1, y1 = clamp(x1, 0, origW-1), clamp(y1, 0, origH-1)
		x2, y2 = clamp(x2, 0, origW-1), clamp(y2, 0, origH-1)
		if x2 <= x1 || y2 <= y1 {
			continue
		}

		dets = append(dets, Detection{
			X1: x1, Y1: y1, X2: x2, Y2: y2,
			Confidence: conf,
			ClassID:    classID,
			Label:      labelFor(labels, classID),
		})
	}
	return dets, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// iou computes intersection-over-union of two boxes.
func iou(a, b Detection) float64 {
	x1 := maxInt(a.X1, b.X1)
	y1 := maxInt(a.Y1, b.Y1)
	x2 := minInt(a.X2, b.X2)
	y2 := minInt(a.Y2, b.Y2)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	inter := float64((x2 - x1) * (y2 - y1))
	areaA := float64((a.X2 - a.X1) * (a.Y2 - a.Y1))
	areaB := float64((b.X2 - b.X1) * (b.Y2 - b.Y1))
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// nms suppresses overlapping detections per class, keeping the highest
// confidence box of each overlapping group.
func nms(dets []Detection, threshold float64) []Detection {
	if len(dets) <= 1 {
		return dets
	}
	sorted := make([]Detection, len(dets))
	copy(sorted, dets)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]Detection, 0, len(sorted))
	suppressed := make([]bool, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] || sorted[j].ClassID != sorted[i].ClassID {
				continue
			}
			if iou(sorted[i], sorted[j]) > threshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
