package common

import (
	"fmt"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner
func PrintBanner(version string, config *Config) {
	banner.Print("ECOCALC", version)
	if config != nil {
		fmt.Printf("  listening   http://%s:%d/api\n", config.Server.Host, config.Server.Port)
		fmt.Printf("  matrix      %s (seed dir %s)\n", config.Matrix.Backend, config.Matrix.SeedDir)
		fmt.Printf("  history     %s\n\n", config.Storage.SQLite.Path)
	}
}
