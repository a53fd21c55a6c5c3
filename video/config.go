package video

// Config holds video display configuration.
type Config struct {
	Device string `yaml:"device"` // default "/dev/fb0"
	Font   string `yaml:"font"`   // TrueType font; a built-in face is used if it cannot be loaded
}
