package detection

import (
	"errors"
	"math"
	"testing"
)

func TestDetection_Center(t *testing.T) {
	tests := []struct {
		name    string
		det     Detection
		expectX float64
		expectY float64
	}{
		{"center of image", Detection{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}, 0.5, 0.5},
		{"top left corner", Detection{X: 0, Y: 0, W: 0.2, H: 0.2}, 0.1, 0.1},
		{"bottom right corner", Detection{X: 0.8, Y: 0.8, W: 0.2, H: 0.2}, 0.9, 0.9},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			x, y := tc.det.Center()
			if math.Abs(x-tc.expectX) > 1e-9 {
				t.Errorf("Center X: got %.2f, want %.2f", x, tc.expectX)
			}
			if math.Abs(y-tc.expectY) > 1e-9 {
				t.Errorf("Center Y: got %.2f, want %.2f", y, tc.expectY)
			}
		})
	}
}

func TestDetection_Area(t *testing.T) {
	d := Detection{W: 0.5, H: 0.5}
	if d.Area() != 0.25 {
		t.Errorf("expected 0.25, got %v", d.Area())
	}
}

func TestBest(t *testing.T) {
	if Best(nil) != nil {
		t.Error("expected nil for no detections")
	}

	dets := []Detection{
		{Label: "cup", Confidence: 0.9, W: 0.05, H: 0.05},
		{Label: "person", Confidence: 0.8, W: 0.5, H: 0.8},
	}
	best := Best(dets)
	if best == nil || best.Label != "person" {
		t.Errorf("expected large person to win, got %+v", best)
	}

	zero := []Detection{{Label: "a", Confidence: 0.3}, {Label: "b", Confidence: 0.6}}
	if got := Best(zero); got.Label != "b" {
		t.Errorf("expected confidence to decide with zero areas, got %s", got.Label)
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name string
		dets []Detection
		want string
	}{
		{"empty", nil, ""},
		{"single", []Detection{{Label: "cup"}}, "cup"},
		{"counted and ordered", []Detection{
			{Label: "cup"}, {Label: "person"}, {Label: "book"}, {Label: "person"},
		}, "person (2), book, cup"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Summary(tc.dets); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFilterAndClassName(t *testing.T) {
	dets := []Detection{{Label: "dog"}, {Label: "cat"}, {Label: "dog"}}
	if n := len(Filter(dets, "dog")); n != 2 {
		t.Errorf("expected 2 dogs, got %d", n)
	}
	if ClassName(0) != "person" || ClassName(79) != "toothbrush" {
		t.Error("unexpected COCO names")
	}
	if ClassName(80) != "object" || ClassName(-1) != "object" {
		t.Error("expected fallback name for out of range ids")
	}
	if len(COCOClasses) != 80 {
		t.Errorf("expected 80 classes, got %d", len(COCOClasses))
	}
}

func TestMock(t *testing.T) {
	m := &Mock{Detections: []Detection{{Label: "cup"}}}
	got, err := m.Detect([]byte{0xff, 0xd8})
	if err != nil || len(got) != 1 {
		t.Fatalf("unexpected result %v %v", got, err)
	}
	m.Err = ErrUnavailable
	if _, err := m.Detect(nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected scripted error, got %v", err)
	}
	if m.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", m.Calls())
	}
}
