package detector

import (
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

func TestHandLandmarks_Vector(t *testing.T) {
	t.Run("has 63 values", func(t *testing.T) {
		hand := OpenPalmLandmarks()
		vec := hand.Vector()

		if len(vec) != VectorSize {
			t.Fatalf("expected %d values, got %d", VectorSize, len(vec))
		}
	})

	t.Run("wrist maps to zeros", func(t *testing.T) {
		hand := HandLandmarks{}
		hand.Points[Wrist] = Point3D{X: 100.0, Y: 200.0, Z: 50.0}
		for i := 1; i < NumLandmarks; i++ {
			hand.Points[i] = Point3D{
				X: 100.0 + float64(i)*10.0,
				Y: 200.0 + float64(i)*5.0,
				Z: 50.0 + float64(i)*2.0,
			}
		}

		vec := hand.Vector()

		for c := 0; c < 3; c++ {
			if math.Abs(vec[c]) > epsilon {
				t.Errorf("expected wrist component %d to be 0, got %f", c, vec[c])
			}
		}
	})

	t.Run("values are wrist-relative in landmark order", func(t *testing.T) {
		hand := HandLandmarks{}
		hand.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.1}
		hand.Points[IndexTip] = Point3D{X: 0.6, Y: 0.3, Z: 0.15}

		vec := hand.Vector()

		base := IndexTip * 3
		if math.Abs(vec[base]-0.1) > epsilon {
			t.Errorf("expected index tip X offset 0.1, got %f", vec[base])
		}
		if math.Abs(vec[base+1]-(-0.5)) > epsilon {
			t.Errorf("expected index tip Y offset -0.5, got %f", vec[base+1])
		}
		if math.Abs(vec[base+2]-0.05) > epsilon {
			t.Errorf("expected index tip Z offset 0.05, got %f", vec[base+2])
		}
	})

	t.Run("translation invariant", func(t *testing.T) {
		hand := FistLandmarks()
		shifted := hand
		for i := 0; i < NumLandmarks; i++ {
			shifted.Points[i].X += 0.3
			shifted.Points[i].Y -= 0.2
			shifted.Points[i].Z += 0.05
		}

		a := hand.Vector()
		b := shifted.Vector()

		for i := range a {
			if math.Abs(a[i]-b[i]) > epsilon {
				t.Fatalf("component %d differs after translation: %f vs %f", i, a[i], b[i])
			}
		}
	})
}

func TestMockDetector(t *testing.T) {
	t.Run("reports no hand by default", func(t *testing.T) {
		mock := NewMockDetector()

		hand, err := mock.Detect(nil)

		if !errors.Is(err, ErrNoHand) {
			t.Errorf("expected ErrNoHand, got %v", err)
		}
		if hand != nil {
			t.Errorf("expected nil hand, got %v", hand)
		}
	})

	t.Run("returns configured hand", func(t *testing.T) {
		mock := NewMockDetector()

		fist := FistLandmarks()
		mock.SetHand(&fist)

		hand, err := mock.Detect(nil)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if hand == nil || hand.Handedness != "Right" {
			t.Errorf("expected configured hand back, got %v", hand)
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hand, err := mock.Detect(nil)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if hand != nil {
			t.Errorf("expected nil hand when error is set, got %v", hand)
		}
	})

	t.Run("Close returns nil", func(t *testing.T) {
		mock := NewMockDetector()

		if err := mock.Close(); err != nil {
			t.Errorf("expected Close to return nil, got %v", err)
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
	})
}

func TestFistLandmarks(t *testing.T) {
	landmarks := FistLandmarks()

	t.Run("has correct handedness and score", func(t *testing.T) {
		if landmarks.Handedness != "Right" {
			t.Errorf("expected handedness Right, got %s", landmarks.Handedness)
		}
		if landmarks.Score < 0.9 {
			t.Errorf("expected score >= 0.9, got %f", landmarks.Score)
		}
	})

	t.Run("fingers are curled", func(t *testing.T) {
		// Curled fingertips end near the knuckle line in Y.
		checks := []struct {
			name     string
			mcp, tip int
		}{
			{"index", IndexMCP, IndexTip},
			{"middle", MiddleMCP, MiddleTip},
			{"ring", RingMCP, RingTip},
			{"pinky", PinkyMCP, PinkyTip},
		}
		for _, c := range checks {
			extension := landmarks.Points[c.mcp].Y - landmarks.Points[c.tip].Y
			if extension > 0.15 {
				t.Errorf("%s finger appears extended (extension: %f), should be curled", c.name, extension)
			}
		}
	})

	t.Run("differs from open palm", func(t *testing.T) {
		fist := landmarks.Vector()
		open := OpenPalmLandmarks()
		palm := open.Vector()

		var dist float64
		for i := range fist {
			d := fist[i] - palm[i]
			dist += d * d
		}
		if math.Sqrt(dist) < 0.5 {
			t.Errorf("fist and open palm vectors too close (distance %f)", math.Sqrt(dist))
		}
	})
}

func TestOpenPalmLandmarks(t *testing.T) {
	landmarks := OpenPalmLandmarks()

	t.Run("all fingers are extended", func(t *testing.T) {
		minExtension := 0.2

		checks := []struct {
			name     string
			mcp, tip int
		}{
			{"index", IndexMCP, IndexTip},
			{"middle", MiddleMCP, MiddleTip},
			{"ring", RingMCP, RingTip},
			{"pinky", PinkyMCP, PinkyTip},
		}
		for _, c := range checks {
			extension := landmarks.Points[c.mcp].Y - landmarks.Points[c.tip].Y
			if extension < minExtension {
				t.Errorf("%s finger not extended enough (extension: %f), expected >= %f", c.name, extension, minExtension)
			}
		}
	})

	t.Run("thumb is extended to the side", func(t *testing.T) {
		if landmarks.Points[ThumbTip].X <= landmarks.Points[ThumbMCP].X {
			t.Error("thumb tip should be to the right of thumb MCP (extended outward)")
		}
	})

	t.Run("fingers are properly ordered left to right", func(t *testing.T) {
		if landmarks.Points[PinkyMCP].X >= landmarks.Points[RingMCP].X {
			t.Error("pinky should be to the left of ring finger")
		}
		if landmarks.Points[RingMCP].X >= landmarks.Points[MiddleMCP].X {
			t.Error("ring should be to the left of middle finger")
		}
		if landmarks.Points[MiddleMCP].X >= landmarks.Points[IndexMCP].X {
			t.Error("middle should be to the left of index finger")
		}
	})
}
