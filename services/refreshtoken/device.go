package refreshtoken

import "github.com/mileusna/useragent"

type deviceInfo struct {
	Browser string
	OS      string
	Device  string
}

func parseUserAgent(raw string) deviceInfo {
	if raw == "" {
		return deviceInfo{Browser: "Unknown Browser", OS: "Unknown OS", Device: "Unknown Device"}
	}

	ua := useragent.Parse(raw)

	info := deviceInfo{Browser: "Unknown Browser", OS: "Unknown OS"}
	if ua.Name != "" {
		info.Browser = joinVersion(ua.Name, ua.Version)
	}
	if ua.OS != "" {
		info.OS = joinVersion(ua.OS, ua.OSVersion)
	}

	switch {
	case ua.Device != "":
		info.Device = ua.Device
	case ua.Bot:
		info.Device = "Bot"
	case ua.Mobile:
		info.Device = "Mobile Device"
	case ua.Tablet:
		info.Device = "Tablet"
	default:
		info.Device = "Desktop Computer"
	}
	return info
}

func joinVersion(name, version string) string {
	if version == "" {
		return name
	}
	return name + " " + version
}
