// Package pose derives head pitch, yaw and roll from face-mesh landmarks.
package pose

import (
	"fmt"
	"math"

	"github.com/dudu/facegaze/internal/landmark"
)

// Empirically tuned scale factors; keep verbatim.
const (
	YawScale   = 1.05
	PitchScale = 1.45
	RollScale  = 0.7
)

// Angles is head pose in degrees. The range is not bounded.
type Angles struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// Estimate computes pose from the normalized 3D landmarks.
//
// The face normal is the average of two unit normals: eye axis x vertical
// axis and mouth axis x vertical axis. Yaw and pitch come from that normal,
// roll from the in-plane slope of the eye and mouth lines.
func Estimate(set *landmark.Set) (Angles, error) {
	get := func(idx int) (landmark.Vec3, error) {
		l, err := set.At(idx)
		if err != nil {
			return landmark.Vec3{}, fmt.Errorf("pose: %w", err)
		}
		return l.Vec(), nil
	}

	var (
		pts  [8]landmark.Vec3
		idxs = [8]int{
			landmark.PoseLeftEyeOuter, landmark.PoseLeftEyeInner,
			landmark.PoseRightEyeInner, landmark.PoseRightEyeOuter,
			landmark.MouthLeft, landmark.MouthRight,
			landmark.Chin, landmark.Forehead,
		}
	)
	for i, idx := range idxs {
		v, err := get(idx)
		if err != nil {
			return Angles{}, err
		}
		pts[i] = v
	}

	leftEye := pts[0].Mid(pts[1])
	rightEye := pts[2].Mid(pts[3])
	mouthLeft, mouthRight := pts[4], pts[5]
	chin, forehead := pts[6], pts[7]

	vEye := leftEye.Sub(rightEye)
	vMouth := mouthLeft.Sub(mouthRight)
	vVertical := forehead.Sub(chin)

	zEye := vEye.Cross(vVertical).Normalize()
	zMouth := vMouth.Cross(vVertical).Normalize()
	z := zEye.Mid(zMouth)

	yaw := degrees(math.Atan2(z.X, z.Z)) * YawScale
	pitch := degrees(math.Atan2(z.Y, math.Sqrt(z.X*z.X+z.Z*z.Z))) * PitchScale

	eyeRoll := degrees(math.Atan2(rightEye.Y-leftEye.Y, rightEye.X-leftEye.X))
	mouthRoll := degrees(math.Atan2(mouthRight.Y-mouthLeft.Y, mouthRight.X-mouthLeft.X))
	roll := -((eyeRoll + mouthRoll) / 2) * RollScale

	return Angles{Pitch: pitch, Yaw: yaw, Roll: roll}, nil
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
