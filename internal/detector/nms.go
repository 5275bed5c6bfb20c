package detector

import "sort"

// nms performs Non-Maximum Suppression on located faces
func nms(faces []Face, iouThreshold float32) []Face {
	if len(faces) == 0 {
		return faces
	}

	sort.SliceStable(faces, func(i, j int) bool {
		return faces[i].Score > faces[j].Score
	})

	suppressed := make([]bool, len(faces))
	result := make([]Face, 0, len(faces))

	for i := range faces {
		if suppressed[i] {
			continue
		}
		result = append(result, faces[i])
		for j := i + 1; j < len(faces); j++ {
			if !suppressed[j] && iou(faces[i].BoundingBox, faces[j].BoundingBox) > iouThreshold {
				suppressed[j] = true
			}
		}
	}

	return result
}

// iou calculates Intersection over Union of two bounding boxes
func iou(a, b BoundingBox) float32 {
	x1 := max(a.X1, b.X1)
	y1 := max(a.Y1, b.Y1)
	x2 := min(a.X2, b.X2)
	y2 := min(a.Y2, b.Y2)

	if x1 >= x2 || y1 >= y2 {
		return 0
	}

	intersection := (x2 - x1) * (y2 - y1)
	union := a.Area() + b.Area() - intersection
	if union <= 0 {
		return 0
	}

	return intersection / union
}

func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
