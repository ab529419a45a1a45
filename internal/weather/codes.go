package weather

// Category buckets a WMO weather code for risk scoring. The code sets are
// mutually exclusive: every code maps to at most one category.
type Category string

const (
	CategoryThunderstorm  Category = "thunderstorm"
	CategoryHeavyRain     Category = "heavy_rain"
	CategoryRain          Category = "rain"
	CategorySnow          Category = "snow"
	CategoryFog           Category = "fog"
	CategoryClearOrCloudy Category = "clear_or_cloudy"
	CategoryUnknown       Category = "unknown"
)

// codeDescriptions maps WMO weather codes to readable text.
var codeDescriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Foggy",
	48: "Rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snowfall",
	73: "Moderate snowfall",
	75: "Heavy snowfall",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

var categoryByCode = map[int]Category{}

// Codes that land in heavier buckets are claimed first so lighter buckets
// never shadow them.
func init() {
	assign := func(cat Category, codes ...int) {
		for _, c := range codes {
			if _, taken := categoryByCode[c]; !taken {
				categoryByCode[c] = cat
			}
		}
	}
	assign(CategoryThunderstorm, 95, 96, 99)
	assign(CategoryHeavyRain, 82, 65, 67, 75, 86)
	assign(CategorySnow, 71, 73, 77, 85)
	assign(CategoryRain, 51, 53, 55, 56, 57, 61, 63, 66, 80, 81)
	assign(CategoryFog, 45, 48)
	assign(CategoryClearOrCloudy, 0, 1, 2, 3)
}

// CodeText returns the human-readable description for a WMO code.
func CodeText(code *int) string {
	if code == nil {
		return "Unknown conditions"
	}
	if desc, ok := codeDescriptions[*code]; ok {
		return desc
	}
	return "Unknown conditions"
}

// ClassifyCode maps a WMO code to its risk category.
func ClassifyCode(code *int) Category {
	if code == nil {
		return CategoryUnknown
	}
	if cat, ok := categoryByCode[*code]; ok {
		return cat
	}
	return CategoryUnknown
}
