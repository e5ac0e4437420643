// Package detection runs an optional local object detector on camera
// frames. Its labels are added to vision prompts as hints.
package detection

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnavailable is returned when the build or the model cannot detect.
var ErrUnavailable = errors.New("detection: detector unavailable")

// Detection is one labelled bounding box.
type Detection struct {
	X, Y       float64 // Top-left corner (0-1 normalized)
	W, H       float64 // Width and height (0-1 normalized)
	Confidence float64 // Detection confidence (0-1)
	ClassID    int     // COCO class ID
	Label      string  // Human-readable class name
}

// Center returns the center point of the detection
func (d Detection) Center() (x, y float64) {
	return d.X + d.W/2, d.Y + d.H/2
}

// Area returns the area of the bounding box
func (d Detection) Area() float64 {
	return d.W * d.H
}

// Detector finds objects in a JPEG frame.
type Detector interface {
	Detect(jpeg []byte) ([]Detection, error)
	Close() error
}

// Config holds detector configuration
type Config struct {
	ModelPath   string  // Path to ONNX model
	Confidence  float32 // Minimum class score
	NMS         float32 // Non-maximum suppression IoU threshold
	InputWidth  int     // Model input width
	InputHeight int     // Model input height
}

// DefaultConfig returns defaults for YOLOv8n.
func DefaultConfig() Config {
	return Config{
		ModelPath:   "models/yolov8n.onnx",
		Confidence:  0.5,
		NMS:         0.45,
		InputWidth:  640,
		InputHeight: 640,
	}
}

// Best picks the most prominent detection.
// Priority: confidence * 0.7 + relative area * 0.3.
func Best(dets []Detection) *Detection {
	if len(dets) == 0 {
		return nil
	}

	maxArea := 0.0
	for _, d := range dets {
		maxArea = max(maxArea, d.Area())
	}

	bestScore := -1.0
	var best *Detection
	for i := range dets {
		score := dets[i].Confidence * 0.7
		if maxArea > 0 {
			score += dets[i].Area() / maxArea * 0.3
		}
		if score > bestScore {
			bestScore = score
			best = &dets[i]
		}
	}
	return best
}

// Filter returns the detections with the given label.
func Filter(dets []Detection, label string) []Detection {
	var out []Detection
	for _, d := range dets {
		if d.Label == label {
			out = append(out, d)
		}
	}
	return out
}

// Summary renders detections as "person (2), cup", most frequent first.
func Summary(dets []Detection) string {
	if len(dets) == 0 {
		return ""
	}
	counts := make(map[string]int)
	for _, d := range dets {
		counts[d.Label]++
	}
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})

	parts := make([]string, len(labels))
	for i, l := range labels {
		if n := counts[l]; n > 1 {
			parts[i] = fmt.Sprintf("%s (%d)", l, n)
		} else {
			parts[i] = l
		}
	}
	return strings.Join(parts, ", ")
}

// ClassName returns the COCO name for id, or "object".
func ClassName(id int) string {
	if id < 0 || id >= len(COCOClasses) {
		return "object"
	}
	return COCOClasses[id]
}

// COCOClasses contains the 80 COCO class names
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator",
	"book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}
