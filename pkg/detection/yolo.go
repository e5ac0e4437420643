//go:build gocv

package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/suradas/pkg/debug"
)

// YOLODetector runs a YOLOv8 ONNX model through OpenCV DNN.
type YOLODetector struct {
	net       gocv.Net
	config    Config
	mu        sync.Mutex
	inputSize image.Point
}

// NewYOLO loads the model at cfg.ModelPath.
func NewYOLO(cfg Config) (Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: model %s: %v", ErrUnavailable, cfg.ModelPath, err)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: failed to load %s", ErrUnavailable, cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &YOLODetector{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Detect finds objects in the JPEG image
func (d *YOLODetector) Detect(jpeg []byte) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("detection: decode image: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("detection: empty image")
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	dets := d.parse(output, float32(img.Cols()), float32(img.Rows()))
	if len(dets) > 0 {
		debug.Log("🔍 YOLO found %d object(s): %s\n", len(dets), Summary(dets))
	}
	return dets, nil
}

// parse reads the [1, 84, 8400] YOLOv8 tensor: 4 box values then 80
// class scores per candidate, column-major.
func (d *YOLODetector) parse(output gocv.Mat, imgW, imgH float32) []Detection {
	sizes := output.Size()
	if len(sizes) != 3 {
		return nil
	}
	attrs, rows := sizes[1], sizes[2]

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil
	}

	var (
		boxes       []image.Rectangle
		confidences []float32
		classIDs    []int
	)
	for i := 0; i < rows; i++ {
		best, classID := float32(0), 0
		for c := 4; c < attrs; c++ {
			if s := data[c*rows+i]; s > best {
				best, classID = s, c-4
			}
		}
		if best < d.config.Confidence {
			continue
		}

		cx, cy := data[i], data[rows+i]
		w, h := data[2*rows+i], data[3*rows+i]
		sx := imgW / float32(d.config.InputWidth)
		sy := imgH / float32(d.config.InputHeight)

		boxes = append(boxes, image.Rect(
			int((cx-w/2)*sx), int((cy-h/2)*sy),
			int((cx+w/2)*sx), int((cy+h/2)*sy),
		))
		confidences = append(confidences, best)
		classIDs = append(classIDs, classID)
	}
	if len(boxes) == 0 {
		return nil
	}

	var dets []Detection
	for _, idx := range gocv.NMSBoxes(boxes, confidences, d.config.Confidence, d.config.NMS) {
		box := boxes[idx]
		dets = append(dets, Detection{
			X:          float64(box.Min.X) / float64(imgW),
			Y:          float64(box.Min.Y) / float64(imgH),
			W:          float64(box.Dx()) / float64(imgW),
			H:          float64(box.Dy()) / float64(imgH),
			Confidence: float64(confidences[idx]),
			ClassID:    classIDs[idx],
			Label:      ClassName(classIDs[idx]),
		})
	}
	return dets
}

// Close releases the detector resources
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

var _ Detector = (*YOLODetector)(nil)
