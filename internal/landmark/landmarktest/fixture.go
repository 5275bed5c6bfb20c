// Package landmarktest builds deterministic landmark sets for tests.
package landmarktest

import "github.com/dudu/facegaze/internal/landmark"

// Uniform returns n landmarks all placed at (x, y, 0)
func Uniform(n int, x, y float64) *landmark.Set {
	points := make([]landmark.Landmark, n)
	for i := range points {
		points[i] = landmark.Landmark{X: x, Y: y}
	}
	return landmark.NewSet(points)
}

// With returns a copy of set with the given landmarks replaced
func With(set *landmark.Set, overrides map[int]landmark.Landmark) *landmark.Set {
	points := make([]landmark.Landmark, set.Len())
	copy(points, set.Points)
	for idx, l := range overrides {
		points[idx] = l
	}
	return landmark.NewSet(points)
}

// Truncate returns a copy of the first n landmarks
func Truncate(set *landmark.Set, n int) *landmark.Set {
	points := make([]landmark.Landmark, n)
	copy(points, set.Points[:n])
	return landmark.NewSet(points)
}

func pt(x, y float64) landmark.Landmark {
	return landmark.Landmark{X: x, Y: y}
}

// Frontal returns a level, centered, open-eyed 478-point face. On a 1000x1000
// frame the eyes sit at y=400, forehead at 200, chin at 600 and both iris
// centers coincide with their pupils.
func Frontal() *landmark.Set {
	return With(Uniform(landmark.NumRefinedLandmarks, 0.5, 0.5), map[int]landmark.Landmark{
		landmark.NoseTip:    pt(0.50, 0.45),
		landmark.Forehead:   pt(0.50, 0.20),
		landmark.Chin:       pt(0.50, 0.60),
		landmark.MouthLeft:  pt(0.45, 0.50),
		landmark.MouthRight: pt(0.55, 0.50),
		landmark.LeftCheek:  pt(0.35, 0.45),
		landmark.RightCheek: pt(0.65, 0.45),

		// left eye contour, outer corner first
		263: pt(0.600, 0.400),
		466: pt(0.597, 0.396),
		388: pt(0.592, 0.392),
		387: pt(0.585, 0.390),
		386: pt(0.577, 0.389),
		385: pt(0.569, 0.390),
		384: pt(0.562, 0.392),
		398: pt(0.556, 0.396),
		382: pt(0.553, 0.402),
		362: pt(0.550, 0.400),
		381: pt(0.558, 0.406),
		380: pt(0.569, 0.410),
		374: pt(0.577, 0.411),
		373: pt(0.585, 0.410),
		390: pt(0.592, 0.408),
		249: pt(0.597, 0.404),
		359: pt(0.603, 0.400),
		467: pt(0.600, 0.395),

		// right eye contour, mirrored
		33:  pt(0.400, 0.400),
		246: pt(0.403, 0.396),
		161: pt(0.408, 0.392),
		160: pt(0.415, 0.390),
		159: pt(0.423, 0.389),
		158: pt(0.431, 0.390),
		157: pt(0.438, 0.392),
		173: pt(0.444, 0.396),
		153: pt(0.447, 0.402),
		133: pt(0.450, 0.400),
		155: pt(0.442, 0.406),
		154: pt(0.431, 0.410),
		145: pt(0.423, 0.411),
		144: pt(0.415, 0.410),
		163: pt(0.408, 0.408),
		7:   pt(0.403, 0.404),
		130: pt(0.397, 0.400),
		247: pt(0.400, 0.395),

		// irises
		473: pt(0.577, 0.400),
		474: pt(0.582, 0.400),
		475: pt(0.577, 0.395),
		476: pt(0.572, 0.400),
		477: pt(0.577, 0.405),
		468: pt(0.423, 0.400),
		469: pt(0.428, 0.400),
		470: pt(0.423, 0.395),
		471: pt(0.418, 0.400),
		472: pt(0.423, 0.405),
	})
}
