package game

import "github.com/talgya/blob-crowd/internal/geom"

// Look converts mouse deltas into camera pitch and body yaw, in degrees.
type Look struct {
	Sensitivity float64 `json:"sensitivity"`
	TopClamp    float64 `json:"top_clamp"`
	BottomClamp float64 `json:"bottom_clamp"`

	pitch float64
	yaw   float64
}

// DefaultLook returns the first-person camera settings.
func DefaultLook() *Look {
	return &Look{Sensitivity: 500, TopClamp: -90, BottomClamp: 90}
}

// Apply accumulates one frame of mouse movement.
func (l *Look) Apply(mouseX, mouseY, dt float64) {
	l.pitch -= mouseY * l.Sensitivity * dt
	l.pitch = geom.Clamp(l.pitch, l.TopClamp, l.BottomClamp)
	l.yaw += mouseX * l.Sensitivity * dt
}

// Rotation returns the camera's local rotation as (pitch, yaw).
func (l *Look) Rotation() (pitch, yaw float64) {
	return l.pitch, l.yaw
}

// Orientation returns the body yaw.
func (l *Look) Orientation() float64 {
	return l.yaw
}
