package router

import (
	"strconv"
	"strings"

	"github.com/rvwalker/concierge/internal/intent"
	"github.com/rvwalker/concierge/internal/state"
)

// cityEntry maps a Chinese city name to the romanised form the weather tool
// expects. The table is ordered so the substring fallback is deterministic:
// earlier entries win when an address embeds several city names.
type cityEntry struct {
	name string
	city string
}

var cityTable = []cityEntry{
	{"重庆", "Chongqing"},
	{"永川", "Yongchuan"},
	{"北京", "Beijing"},
	{"上海", "Shanghai"},
	{"广州", "Guangzhou"},
	{"深圳", "Shenzhen"},
	{"成都", "Chengdu"},
	{"杭州", "Hangzhou"},
	{"南京", "Nanjing"},
	{"武汉", "Wuhan"},
	{"西安", "Xian"},
	{"天津", "Tianjin"},
	{"苏州", "Suzhou"},
	{"长沙", "Changsha"},
	{"郑州", "Zhengzhou"},
	{"青岛", "Qingdao"},
	{"大连", "Dalian"},
	{"沈阳", "Shenyang"},
	{"哈尔滨", "Harbin"},
	{"济南", "Jinan"},
	{"昆明", "Kunming"},
	{"厦门", "Xiamen"},
	{"福州", "Fuzhou"},
	{"南宁", "Nanning"},
	{"贵阳", "Guiyang"},
	{"兰州", "Lanzhou"},
}

var cityNames = func() map[string]string {
	m := make(map[string]string, len(cityTable))
	for _, e := range cityTable {
		m[e.name] = e.city
	}
	return m
}()

// defaultCity backs weather queries when no location is resolvable.
const defaultCity = "Chongqing"

// defaultRadius is the area search radius in meters.
const defaultRadius = 3000

// buildCall selects the operation and builds its parameters for an intent.
// Ambient state backfills parameters the intent does not carry.
func buildCall(in intent.Intent, ambient state.Context) (string, map[string]interface{}) {
	switch in.ToolName {
	case "weather":
		return weatherCall(in, ambient)
	case "market":
		return marketCall(in)
	case "area_search":
		return areaSearchCall(in, ambient)
	default:
		// An unknown tool gets the query passed through verbatim; whether
		// the operation exists is checked against the session's listing.
		return "query", map[string]interface{}{"query": in.RawQuery}
	}
}

func weatherCall(in intent.Intent, ambient state.Context) (string, map[string]interface{}) {
	location, ok := in.EntityValue("location")
	if !ok {
		location = ambient.Location
	}
	return "query_weather", map[string]interface{}{"city": canonicalCity(location)}
}

// canonicalCity resolves a Chinese place name to the romanised city the
// weather tool accepts. Administrative suffixes are stripped before lookup,
// and a substring match catches names embedded in longer addresses.
func canonicalCity(location string) string {
	if location == "" {
		return defaultCity
	}
	if city, ok := cityNames[location]; ok {
		return city
	}

	cleaned := location
	for _, suffix := range []string{"市", "区", "县", "镇", "省"} {
		cleaned = strings.TrimSuffix(cleaned, suffix)
	}
	if city, ok := cityNames[cleaned]; ok {
		return city
	}

	for _, e := range cityTable {
		if strings.Contains(location, e.name) {
			return e.city
		}
	}
	return defaultCity
}

func marketCall(in intent.Intent) (string, map[string]interface{}) {
	if category, ok := in.EntityValue("category"); ok {
		if category == "" {
			category = "饮料"
		}
		return "list_category", map[string]interface{}{"category": category}
	}

	query, ok := in.EntityValue("product")
	if !ok || query == "" {
		query = in.RawQuery
	}
	return "find_product", map[string]interface{}{"query": query}
}

func areaSearchCall(in intent.Intent, ambient state.Context) (string, map[string]interface{}) {
	params := map[string]interface{}{
		"radius": defaultRadius,
	}
	if radius, ok := in.EntityValue("radius"); ok {
		if n, err := strconv.Atoi(radius); err == nil && n > 0 {
			params["radius"] = n
		}
	}

	venue, ok := in.EntityValue("venue")
	if !ok || venue == "" {
		venue = ambient.Venue
	}
	if venue != "" {
		params["venue"] = venue
	}

	if keyword, ok := in.EntityValue("query"); ok && keyword != "" {
		params["keyword"] = keyword
	}

	// type_code accompanies an explicit poi_type entity only; an operation
	// picked by query keyword goes out without one.
	poi, _ := in.EntityValue("poi_type")
	raw := in.RawQuery
	switch {
	case poi == "restaurant":
		params["type_code"] = "050000"
		return "search_nearby_food", params
	case poi == "shopping":
		params["type_code"] = "060000"
		return "search_nearby_shopping", params
	case poi == "entertainment":
		params["type_code"] = "080000"
		return "search_nearby_entertainment", params
	case strings.Contains(raw, "食"):
		return "search_nearby_food", params
	case strings.Contains(raw, "购物"):
		return "search_nearby_shopping", params
	case strings.Contains(raw, "娱乐"):
		return "search_nearby_entertainment", params
	default:
		return "search_nearby", params
	}
}
