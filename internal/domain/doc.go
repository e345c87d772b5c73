// Package domain models earthquake events and tectonic plate boundaries and
// the visual encoding used to draw them on a map.
//
// # Data Sources
//
// Earthquake events come from the USGS real-time GeoJSON summary feeds, e.g.
// https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_week.geojson.
// Each feature carries:
//
//	properties.mag    magnitude (number, may be null for unreviewed events)
//	properties.place  human-readable place, e.g. "10 km SSW of Ridgecrest, CA"
//	properties.time   origin time in epoch milliseconds
//	properties.url    event page on earthquake.usgs.gov
//	geometry          Point with [longitude, latitude, depth in km]
//
// Depth is positive below sea level. Shallow events near or above the
// reference surface are reported with small negative depths.
//
// Plate boundaries come from the PB2002 model (Bird, 2003) as published in
// the fraxen/tectonicplates repository. Features are LineStrings with an
// optional "Name" property such as "AF-AN".
//
// # Visual Encoding
//
// Marker radius grows linearly with magnitude ([RadiusScale] map units per
// magnitude unit). Fill color is looked up in [DepthBands]:
//
//	depth <= 10       #00ff00
//	10 < depth <= 30  #bfff00
//	30 < depth <= 50  #ffff00
//	50 < depth <= 70  #ffbf00
//	70 < depth <= 90  #ff8000
//	depth > 90        #ff0000
//
// Every threshold compares with strict "greater than", so a depth equal to a
// threshold belongs to the shallower band. The legend samples each band one
// kilometre above its threshold so it always agrees with the markers.
//
// # Malformed Input
//
// Negative and NaN magnitudes produce a zero radius. Features whose longitude
// or latitude is not finite are rejected by the feed parser before they reach
// this package.
package domain
