package config

// NewGuildForTest creates a Guild config pointing at the given file
func NewGuildForTest(path string) *Guild {
	return &Guild{path: path}
}
