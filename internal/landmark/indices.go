// Package landmark holds the face-mesh landmark model and the pixel geometry built on it.
//
// Index constants follow the 478-point MediaPipe face mesh with iris refinement.
package landmark

// Face mesh sizes
const (
	NumMeshLandmarks    = 468
	NumRefinedLandmarks = 478
)

// Named landmarks
const (
	NoseTip    = 1
	Forehead   = 10
	Chin       = 152
	MouthLeft  = 61
	MouthRight = 291
	LeftCheek  = 234
	RightCheek = 454

	// Eye corners used for pose
	PoseLeftEyeOuter  = 33
	PoseLeftEyeInner  = 133
	PoseRightEyeInner = 362
	PoseRightEyeOuter = 263

	LeftPupil  = 473
	RightPupil = 468
)

// Eye contours are 18 points each. Positions 0/8 form the horizontal pair, 4/12 and 5/11 the vertical
// pairs used for the eye aspect ratio. The right contour keeps 153 at position 8 for legacy parity,
// which makes the two sets slightly asymmetric.
var (
	LeftEyeContour = []int{
		263, 466, 388, 387, 386, 385, 384, 398, 382,
		362, 381, 380, 374, 373, 390, 249, 359, 467,
	}
	RightEyeContour = []int{
		33, 246, 161, 160, 159, 158, 157, 173, 153,
		133, 155, 154, 145, 144, 163, 7, 130, 247,
	}

	LeftIris  = []int{474, 475, 476, 477}
	RightIris = []int{469, 470, 471, 472}
)

// FaceOutline returns the face oval indices, chin to forehead and back, used for drawing
func FaceOutline() []int {
	return []int{
		10, 338, 297, 332, 284, 251, 389, 356, 454, 323, 361, 288,
		397, 365, 379, 378, 400, 377, 152, 148, 176, 149, 150, 136,
		172, 58, 132, 93, 234, 127, 162, 21, 54, 103, 67, 109,
	}
}
