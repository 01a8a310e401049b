package appium

// DefaultAppPackage is the application driven by the recorder.
const DefaultAppPackage = "cn.ubia.ubox"

// CapabilityOptions select the device and application of a session.
type CapabilityOptions struct {
	// Local targets the emulator started by the developer (emulator-5554)
	// instead of the CI-provisioned "Android Emulator".
	Local      bool
	AppPackage string
	// Extra capabilities override the defaults key by key.
	Extra map[string]interface{}
}

// Capabilities builds the UiAutomator2 capability set for the recorder.
func Capabilities(opts CapabilityOptions) map[string]interface{} {
	deviceName := "Android Emulator"
	if opts.Local {
		deviceName = "emulator-5554"
	}
	appPackage := opts.AppPackage
	if appPackage == "" {
		appPackage = DefaultAppPackage
	}

	caps := map[string]interface{}{
		"platformName":                            "Android",
		"appium:deviceName":                       deviceName,
		"appium:automationName":                   "UiAutomator2",
		"appium:appPackage":                       appPackage,
		"appium:appWaitActivity":                  "*",
		"appium:autoGrantPermissions":             true,
		"appium:noReset":                          false,
		"appium:ensureWebviewsHavePages":          true,
		"appium:nativeWebScreenshot":              true,
		"appium:newCommandTimeout":                300,
		"appium:uiautomator2ServerInstallTimeout": 60000,
	}
	for k, v := range opts.Extra {
		caps[k] = v
	}
	return caps
}
