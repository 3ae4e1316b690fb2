package utils

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// ChromeEnv overrides browser discovery for receipt previews.
const ChromeEnv = "PRINTBRIDGE_CHROME"

var chromeBinaries = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"}

// FindChrome looks for a Chrome or Chromium executable: $PRINTBRIDGE_CHROME,
// then $PATH, then the usual install locations for goos.
func FindChrome(goos string) (string, bool) {
	if p := os.Getenv(ChromeEnv); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	for _, bin := range chromeBinaries {
		if p, err := exec.LookPath(bin); err == nil {
			return p, true
		}
	}
	for _, p := range chromeInstallPaths(goos) {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func chromeInstallPaths(goos string) []string {
	switch goos {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "linux":
		return []string{"/usr/bin/google-chrome", "/usr/bin/chromium", "/snap/bin/chromium"}
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
	}
	return nil
}

// RequireChrome returns the browser path or an error carrying install hints.
func RequireChrome() (string, error) {
	if path, ok := FindChrome(runtime.GOOS); ok {
		return path, nil
	}
	return "", fmt.Errorf("chrome/chromium is required for previews (set %s or %s)", ChromeEnv, chromeInstallHint(runtime.GOOS))
}

func chromeInstallHint(goos string) string {
	switch goos {
	case "linux":
		return "apt install chromium"
	case "darwin":
		return "brew install --cask google-chrome"
	case "windows":
		return "install Google Chrome"
	}
	return "install Chrome or Chromium"
}
