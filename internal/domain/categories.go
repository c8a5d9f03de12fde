package domain

// Categories is the fixed civic-issue taxonomy. Routing and classification
// share it; unknown input maps to "other".
var Categories = []string{
	"pothole",
	"garbage",
	"water_leak",
	"streetlight",
	"sewage",
	"tree_fall",
	"other",
}

func KnownCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}
