// Package domain models Sentinel-2 burned-area change detection.
//
// # Data Source
//
// Inputs are Sentinel-2 Level-2A product archives (zip) as distributed by the
// Copernicus hubs. Each archive bundles one JPEG2000 image per band and
// resolution. Entry names end in a band/resolution suffix:
//
//	.../IMG_DATA/R10m/T29SNB_20200815T112121_B04_10m.jp2
//	.../IMG_DATA/R20m/T29SNB_20200815T112121_B12_20m.jp2
//
// The same band may be present at 10, 20 and 60 m. [LocateBand] picks the
// finest one; equal resolutions resolve to the first entry in listing order.
//
// Product names carry the sensing time in their third field:
//
//	S2A_MSIL2A_20200815T112121_N0214_R037_T29SNB_20200815T131012.zip
//	                ^^^^^^^^^^^^^^^ sensing start (UTC)
//
// # Bands
//
//	B02 blue, B03 green, B04 red, B08 near infrared, B12 short-wave infrared.
//
// The post-fire period always materializes all five so that the false-colour
// composites (4,3,2), (8,4,3) and (12,8,4) can be written. The pre-fire period
// only needs the two bands of the selected variant.
//
// # Variants
//
//	vegetation-index (dNDVI): bands (8, 4),  threshold 0.17767
//	burn-index       (dNBR):  bands (8, 12), threshold 0.100
//
// Both compute a normalized difference (A − B) / (A + B) per period and
// subtract post from pre. A 5×5 median filter smooths the difference and
// pixels strictly above the threshold form the burn mask.
//
// # Grid and No-Data
//
// All aligned rasters share a 10 m grid in ETRS89 / Portugal TM06
// (EPSG:3763), warped from the sensor's UTM zone 29N (EPSG:32629) and clipped
// to the municipal boundary. [NoData] (−9999) marks pixels without a valid
// value. The index calculator emits NoData only where A + B == 0; the filter
// and threshold treat NoData like any other value.
//
// # Median Filter Edges
//
// Windows that overhang the raster edge are completed by reflection about the
// edge, repeating the edge pixel (d c b a | a b c d | d c b a), so a constant
// raster filters to itself.
package domain
