package platform

import (
	"os"
	"runtime"

	"github.com/breeze-rmm/control-server/internal/logging"
)

var log = logging.L("platform")

// PlatformEnvVar forces the backend variant regardless of auto-detection
// when set to one of "enigo", "headless", "headless-silent".
const PlatformEnvVar = "SYSTEM_CONTROLLER_PLATFORM"

// Select inspects the environment (or an explicit override) and returns the
// concrete backend variant along with its published Capabilities.
func Select(override string) (Backend, Capabilities) {
	forced := override
	if forced == "" {
		forced = os.Getenv(PlatformEnvVar)
	}

	switch forced {
	case "headless":
		log.Info("platform forced to headless")
		return newHeadless(false)
	case "headless-silent":
		log.Info("platform forced to headless-silent")
		return newHeadless(true)
	case "enigo":
		log.Info("platform forced to native (enigo)")
		return newNative()
	}

	if isHeadlessEnvironment() {
		log.Info("headless environment detected, selecting headless backend")
		return newHeadless(false)
	}

	log.Info("GUI environment detected, selecting native backend")
	return newNative()
}

// isHeadlessEnvironment applies the exact heuristic from the external
// interfaces contract: any of these signals trips headless auto-detection.
func isHeadlessEnvironment() bool {
	if os.Getenv("DISPLAY") == "" && runtime.GOOS != "windows" {
		return true
	}
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "TRAVIS", "JENKINS_URL"} {
		if os.Getenv(v) != "" {
			return true
		}
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if os.Getenv("SSH_CLIENT") != "" || os.Getenv("SSH_TTY") != "" {
		return true
	}
	if os.Getenv("TERM") != "" && os.Getenv("DESKTOP_SESSION") == "" {
		return true
	}
	return false
}
